// Package logger builds *slog.Logger instances with functional options and
// context-driven attributes.
//
// When ContextExtractor functions are registered, New wraps the text or JSON
// handler so each record also gets the attributes they pull from its context. Services use this to
// stamp task metadata onto log lines without threading a logger through every call.
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "subtracker"),
//	    logger.WithContextExtractors(queue.LoggerExtractor()),
//	)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "reminder sent",
//	    logger.SubscriptionID(sub.ID),
//	    logger.UserID(sub.UserID),
//	)
//
// Attribute helpers (Error, UserID, TaskID and friends) keep key names consistent
// and return an empty Attr for nil values, which slog omits.
package logger
