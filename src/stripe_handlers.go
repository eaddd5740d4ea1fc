package main

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"tix/src/inventory"
	"tix/src/pool"
	"tix/src/types"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// reservationIdFromMetadata reads the reservation the payment was created
// for. Checkout attaches it when it creates the PaymentIntent.
func reservationIdFromMetadata(md map[string]string) (uint, error) {
	raw, ok := md["reservationId"]
	if !ok {
		return 0, errors.New("metadata is missing reservationId")
	}
	atoi, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	return uint(atoi), nil
}

func stripeWebhookRoute(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/stripe", func(ctx *gin.Context) {
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			log.Printf("Error reading request body: %s\n", err.Error())
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		whsecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
		event, err := webhook.ConstructEvent(payload, ctx.GetHeader("Stripe-Signature"), whsecret)
		if err != nil {
			log.Printf("Error verifying webhook signature: %s\n", err.Error())
			ctx.Status(http.StatusBadRequest)
			return
		}
		log.Printf("[StripeEvent] %s\n", event.Type)
		switch event.Type {
		case "payment_intent.succeeded":
			var pi stripe.PaymentIntent
			err := json.Unmarshal(event.Data.Raw, &pi)
			if err != nil {
				log.Printf("[Stripe] Error parsing PaymentIntent: %s\n", err.Error())
				break
			}
			log.Printf("[PaymentIntent] ID: %s %s\n", pi.ID, pi.Status)
			resId, err := reservationIdFromMetadata(pi.Metadata)
			if err != nil {
				log.Printf("Could not retrieve reservation id for PaymentIntent %s: %s\n", pi.ID, err.Error())
				break
			}
			lease, err := pool.GetPool().AcquireLease("stripe-fulfill")
			if err != nil {
				log.Printf("Error acquiring lease for stripe-fulfill: %s\n", err.Error())
				ctx.Status(http.StatusServiceUnavailable)
				return
			}
			defer lease.Release()
			engine := inventory.NewEngine(lease.DB())
			reservation, err := engine.FulfillReservation(resId, pi.ID)
			if err != nil {
				if errors.Is(err, types.ErrReservationAlreadyTerminal) {
					log.Printf("Reservation [%d] already settled, skipping %s\n", resId, pi.ID)
					break
				}
				log.Printf("Error fulfilling reservation [%d] from %s: %s\n", resId, pi.ID, err.Error())
				break
			}
			log.Printf("Reservation [%d] fulfilled by PaymentIntent %s (%d units)\n",
				reservation.ID, pi.ID, reservation.Quantity)
		case "payment_intent.canceled", "payment_intent.payment_failed":
			var pi stripe.PaymentIntent
			err := json.Unmarshal(event.Data.Raw, &pi)
			if err != nil {
				log.Printf("[Stripe] Error parsing PaymentIntent: %s\n", err.Error())
				break
			}
			resId, err := reservationIdFromMetadata(pi.Metadata)
			if err != nil {
				log.Printf("Could not retrieve reservation id for PaymentIntent %s: %s\n", pi.ID, err.Error())
				break
			}
			lease, err := pool.GetPool().AcquireLease("stripe-release")
			if err != nil {
				log.Printf("Error acquiring lease for stripe-release: %s\n", err.Error())
				ctx.Status(http.StatusServiceUnavailable)
				return
			}
			defer lease.Release()
			engine := inventory.NewEngine(lease.DB())
			if err := engine.ReleaseReservation(resId); err != nil {
				if errors.Is(err, types.ErrReservationNotFound) {
					log.Printf("No reservation [%d] to release for %s\n", resId, pi.ID)
					break
				}
				log.Printf("Error releasing reservation [%d] from %s: %s\n", resId, pi.ID, err.Error())
				break
			}
			log.Printf("Reservation [%d] released after %s\n", resId, string(event.Type))
		}
		ctx.Status(http.StatusNoContent)
	})
	return apiv1
}
