package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"stagebook/internal/app"
	"stagebook/internal/config"
	"stagebook/internal/domain"
	"stagebook/internal/modules/booking"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config:", err)
	}
	if cfg.IsProdLike() {
		log.Fatal("refusing to seed a prod-like environment")
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal("init failed:", err)
	}
	defer a.Close(ctx)

	venue := domain.Actor{ID: "venue-demo", Role: domain.RoleVenue}
	dj := domain.Actor{ID: "dj-demo", Role: domain.RoleDJ}
	band := domain.Actor{ID: "artist-demo", Role: domain.RoleArtist}
	admin := domain.Actor{ID: "admin-demo", Role: domain.RoleAdmin}

	day := func(days int) string {
		return time.Now().UTC().AddDate(0, 0, days).Format(domain.DateLayout)
	}

	// ================== BOOKINGS ==================
	log.Println("Creating bookings...")

	pending := mustCreate(ctx, a, venue, booking.CreateBookingRequest{
		PerformerID: dj.ID, EventType: string(domain.EventDJSet), EventTitle: "Friday Warmup",
		EventDate: day(21), StartTime: "21:00", DurationHours: 3, OfferedPrice: 45000,
	})

	accepted := mustCreate(ctx, a, venue, booking.CreateBookingRequest{
		PerformerID: band.ID, EventType: string(domain.EventLiveBand), EventTitle: "Rooftop Session",
		EventDate: day(30), StartTime: "19:30", DurationHours: 2.5, OfferedPrice: 120000,
	})
	mustStep(a.Bookings.Accept(ctx, band, accepted.ID, ""))

	confirmed := mustCreate(ctx, a, venue, booking.CreateBookingRequest{
		PerformerID: dj.ID, EventType: string(domain.EventDJSet), EventTitle: "Closing Party",
		EventDate: day(3), StartTime: "23:00", DurationHours: 5, OfferedPrice: 80000,
	})
	mustStep(a.Bookings.Accept(ctx, dj, confirmed.ID, ""))
	mustStep(a.Bookings.PayDeposit(ctx, venue, confirmed.ID, "pm_demo_card", ""))
	mustStep(a.Bookings.PayFinal(ctx, venue, confirmed.ID, "pm_demo_card", ""))

	// ================== TOKENS ==================
	fmt.Println("Seeded bookings:")
	fmt.Printf("  pending   %s\n", pending.ID)
	fmt.Printf("  accepted  %s\n", accepted.ID)
	fmt.Printf("  confirmed %s\n", confirmed.ID)
	fmt.Println()
	fmt.Println("Bearer tokens:")
	for _, actor := range []domain.Actor{venue, dj, band, admin} {
		tok, err := a.Tokens.GenerateToken(actor.ID, actor.Role)
		if err != nil {
			log.Fatal("token:", err)
		}
		fmt.Printf("  %-12s %-7s %s\n", actor.ID, actor.Role, tok)
	}
}

func mustCreate(ctx context.Context, a *app.App, actor domain.Actor, req booking.CreateBookingRequest) *domain.Booking {
	res, err := a.Bookings.Create(ctx, actor, req, "")
	if err != nil {
		log.Fatalf("create %q: %v", req.EventTitle, err)
	}
	return res.Booking
}

func mustStep(_ booking.Result, err error) {
	if err != nil {
		log.Fatal("transition failed:", err)
	}
}
