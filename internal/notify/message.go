package notify

import (
	"fmt"
	"strings"

	"github.com/dgnsrekt/oi-scalper/internal/export"
	"github.com/dgnsrekt/oi-scalper/internal/session"
	"github.com/dgnsrekt/oi-scalper/internal/signal"
)

// FormatTitle creates the notification title for a signal change.
func FormatTitle(instrument string, rec session.DecisionRecord) string {
	return fmt.Sprintf("%s %s @ %s", instrument, rec.Signal, export.Fixed(rec.Spot, 2))
}

// FormatSignalMessage creates the notification body for a decision.
func FormatSignalMessage(rec session.DecisionRecord, previous signal.Label) string {
	var sb strings.Builder

	if previous != "" {
		sb.WriteString(fmt.Sprintf("Was: %s\n", previous))
	}
	sb.WriteString(fmt.Sprintf("EMA: %s\n", export.Fixed(rec.EMA, 2)))
	sb.WriteString(fmt.Sprintf("RSI: %s\n", export.Fixed(rec.RSI, 1)))
	sb.WriteString(fmt.Sprintf("Net OI change: %s\n", export.Crore(rec.NetChange)))
	sb.WriteString(fmt.Sprintf("OI slope: %s\n", export.Lakh(rec.OISlope)))
	sb.WriteString(fmt.Sprintf("Buildup: %s", rec.Buildup))

	if rec.Advisory != "" {
		sb.WriteString(fmt.Sprintf("\n\n%s", rec.Advisory))
	}
	if rec.GammaAdvisory != "" {
		sb.WriteString(fmt.Sprintf("\n%s", rec.GammaAdvisory))
	}
	sb.WriteString(fmt.Sprintf("\n\n%s", rec.Timestamp.Format("15:04:05")))

	return sb.String()
}

func tagFor(label signal.Label) string {
	switch label {
	case signal.LabelStrongBuy, signal.LabelCautiousBuy:
		return "green_circle"
	case signal.LabelStrongSell:
		return "red_circle"
	default:
		return "white_circle"
	}
}
