package templates_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subtracker/pkg/email/templates"
)

func text(s string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

func TestRender(t *testing.T) {
	t.Parallel()

	out, err := templates.Render(context.Background(), text("<p>hi</p>"))
	require.NoError(t, err)
	assert.Equal(t, "<p>hi</p>", out)

	boom := errors.New("boom")
	_, err = templates.Render(context.Background(), templ.ComponentFunc(func(context.Context, io.Writer) error {
		return boom
	}))
	assert.ErrorIs(t, err, boom)
}

func TestLayout(t *testing.T) {
	t.Parallel()

	out, err := templates.Render(context.Background(), templates.Layout("<Title>", text("<p>body</p>")))
	require.NoError(t, err)
	assert.Contains(t, out, "<title>&lt;Title&gt;</title>")
	assert.Contains(t, out, "<p>body</p>")
	assert.Contains(t, out, "</body></html>")
}
