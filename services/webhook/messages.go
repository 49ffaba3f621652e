package webhook

import (
	"fmt"
	"strings"

	"elaview-bookingops/services/booking"
)

const helpText = `Elaview booking ops commands:
• commands / help — this message
• elaview-simulate — create a synthetic booking
• elaview-status — list up to 10 open synthetic bookings
• approve <id> — approve the booking request or its installation proof
• deny <id> — reject the booking request or its installation proof
• wait <id> — walk the full lifecycle with progress updates
• bypass <id> — jump the booking straight to completed
• close <id> — hide a synthetic booking from the status list

<id> is the booking ID prefix shown by elaview-status.`

func notRecognizedMessage(raw string) string {
	first := strings.Fields(raw)[0]
	return fmt.Sprintf("Command %q not recognized. Send commands to see what I understand.", first)
}

func usageMessage(k Kind) string {
	return fmt.Sprintf("The %s command needs a booking ID, e.g. %s 18512345. Send elaview-status to find one.", k, k)
}

func simulateMessage(b *booking.Booking) string {
	return fmt.Sprintf(
		"🆕 Created simulation booking %s\nStatus: %s\nTotal: %s (%s platform fee, %s to owner)\nWindow: %s → %s\nSend approve %s to move it forward.",
		booking.ShortID(b.ID), b.Status,
		booking.FormatUSD(b.TotalAmountCents), booking.FormatUSD(b.PlatformFeeCents), booking.FormatUSD(b.OwnerAmountCents),
		b.StartDate.Format("Jan 2"), b.EndDate.Format("Jan 2"),
		booking.ShortID(b.ID))
}

func statusMessage(bookings []*booking.Booking) string {
	if len(bookings) == 0 {
		return "No open simulation bookings. Send elaview-simulate to create one."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Open simulation bookings (%d):\n", len(bookings))
	for _, b := range bookings {
		fmt.Fprintf(&sb, "• %s — %s — %s\n", booking.ShortID(b.ID), b.Status, booking.FormatUSD(b.TotalAmountCents))
	}
	sb.WriteString("Use approve/deny/wait/bypass/close with an ID above.")
	return sb.String()
}

func approveMessage(b *booking.Booking) string {
	short := booking.ShortID(b.ID)
	if b.Status == booking.StatusCompleted {
		return fmt.Sprintf("✅ Proof for booking %s approved — booking is COMPLETED.", short)
	}
	return fmt.Sprintf("✅ Booking %s approved — now ACTIVE.", short)
}

func denyMessage(b *booking.Booking) string {
	short := booking.ShortID(b.ID)
	if b.ProofStatus == booking.ProofRejected && b.Status == booking.StatusAwaitingProof {
		return fmt.Sprintf("❌ Proof for booking %s rejected — still AWAITING_PROOF until a new photo is approved.", short)
	}
	return fmt.Sprintf("❌ Booking %s denied — REJECTED.", short)
}

func waitMessage(b *booking.Booking) string {
	return fmt.Sprintf("⏳ Walking booking %s through its lifecycle. Progress updates will follow here.", booking.ShortID(b.ID))
}

func bypassMessage(b *booking.Booking) string {
	return fmt.Sprintf("⚡ Bypassing lifecycle for booking %s — jumping straight to COMPLETED.", booking.ShortID(b.ID))
}

func closeMessage(b *booking.Booking) string {
	return fmt.Sprintf("🔒 Booking %s closed. It no longer appears in elaview-status.", booking.ShortID(b.ID))
}
