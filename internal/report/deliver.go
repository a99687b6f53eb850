package report

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"hearing-intake/internal/consultation"
)

// telegramMessageLimit is the Bot API cap on a text message.
const telegramMessageLimit = 4096

type TelegramClient interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, data []byte, fileName, caption string) error
}

// TelegramDeliverer sends reports to the clinician's chat as a PDF. When no
// font is available for the PDF it falls back to a plain text message.
type TelegramDeliverer struct {
	client   TelegramClient
	chatID   int64
	fontPath string
	log      *zap.Logger
}

func NewTelegramDeliverer(client TelegramClient, chatID int64, fontPath string, log *zap.Logger) *TelegramDeliverer {
	return &TelegramDeliverer{client: client, chatID: chatID, fontPath: fontPath, log: log}
}

func (d *TelegramDeliverer) Deliver(ctx context.Context, rec *consultation.PatientRecord, r *consultation.Report) error {
	data, err := RenderPDF(rec, r, d.fontPath)
	if errors.Is(err, ErrNoFont) {
		d.log.Warn("sending report as text", zap.Error(err))
		return d.client.SendMessage(ctx, d.chatID, truncate(r.Chart+"\n"+r.Answer, telegramMessageLimit))
	}
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	fileName := fmt.Sprintf("report_%s.pdf", r.PatientID.String())
	caption := "Hearing loss consultation report"
	if rec.ChiefComplaint != nil {
		caption += ": " + *rec.ChiefComplaint
	}
	d.log.Info("sending report to clinician",
		zap.Int64("chat_id", d.chatID),
		zap.String("patient_id", r.PatientID.String()),
		zap.Int("bytes", len(data)),
	)
	return d.client.SendDocument(ctx, d.chatID, data, fileName, truncate(caption, 1024))
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
