package email

import "fmt"

// Drivers accepted by NewSender.
const (
	DriverPostmark = "postmark"
	DriverDev      = "dev"
)

// Config selects and configures the email transport.
// Postmark credentials and addresses are validated only when the postmark driver is used.
type Config struct {
	Driver string `env:"EMAIL_DRIVER" envDefault:"dev"`
	DevDir string `env:"EMAIL_DEV_DIR" envDefault:"tmp/emails"`

	PostmarkServerToken  string `env:"POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `env:"POSTMARK_ACCOUNT_TOKEN"`
	SenderEmail          string `env:"SENDER_EMAIL"`
	SupportEmail         string `env:"SUPPORT_EMAIL"`
}

// NewSender builds the EmailSender named by cfg.Driver.
func NewSender(cfg Config) (EmailSender, error) {
	switch cfg.Driver {
	case DriverPostmark:
		return NewPostmarkClient(cfg)
	case DriverDev, "":
		return NewDevSender(cfg.DevDir), nil
	default:
		return nil, invalidConfig("unknown driver " + cfg.Driver)
	}
}

func (cfg Config) validatePostmark() error {
	required := []struct{ name, value string }{
		{"PostmarkServerToken", cfg.PostmarkServerToken},
		{"PostmarkAccountToken", cfg.PostmarkAccountToken},
		{"SenderEmail", cfg.SenderEmail},
		{"SupportEmail", cfg.SupportEmail},
	}
	for _, f := range required {
		if f.value == "" {
			return invalidConfig(f.name + " is required")
		}
	}
	if !emailRegex.MatchString(cfg.SenderEmail) {
		return invalidConfig("SenderEmail must be a valid email address")
	}
	if !emailRegex.MatchString(cfg.SupportEmail) {
		return invalidConfig("SupportEmail must be a valid email address")
	}
	return nil
}

func invalidConfig(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}
