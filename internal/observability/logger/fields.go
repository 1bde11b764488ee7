package logger

import (
	"time"

	"go.uber.org/zap"
)

// Standard field helpers so call sites stay consistent about key names.

func RequestID(v string) zap.Field { return zap.String("request_id", v) }

func Method(v string) zap.Field { return zap.String("method", v) }

func Path(v string) zap.Field { return zap.String("path", v) }

func Status(v int) zap.Field { return zap.Int("status", v) }

func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }

func Err(v error) zap.Field { return zap.Error(v) }

func Detail(v string) zap.Field { return zap.String("detail", v) }

// Webhook delivery fields.

func Event(v string) zap.Field { return zap.String("event", v) }

func Action(v string) zap.Field { return zap.String("action", v) }

func Delivery(v string) zap.Field { return zap.String("delivery", v) }

// Credential and rate-limit fields.

func InstallationID(v int64) zap.Field { return zap.Int64("installation_id", v) }

func UserID(v string) zap.Field { return zap.String("user_id", v) }

func Policy(v string) zap.Field { return zap.String("policy", v) }

func Subject(v string) zap.Field { return zap.String("subject", v) }
