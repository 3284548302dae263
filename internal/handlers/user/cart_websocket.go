package user

import (
	"context"
	"errors"
	"log"
	"net/http"
	"slices"
	"time"

	"mutaengine_back_end/internal/cache"
	"mutaengine_back_end/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

type cartMessage struct {
	Type string    `json:"type"`
	Cart *cartView `json:"cart"`
}

func (h *CartHandler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(h.origins, "*") || slices.Contains(h.origins, origin)
		},
	}
}

// CartWebSocket pousse un instantané du panier à la connexion puis à chaque événement Redis
// @Summary Flux WebSocket du panier
// @Tags cart
// @Produce json
// @Security BearerAuth
// @Success 101
// @Failure 400 {object} utils.Envelope
// @Router /api/cart/ws [get]
func (h *CartHandler) CartWebSocket(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("❌ Erreur upgrade WebSocket: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	pubsub := h.feed.Subscribe(ctx, user.ID)
	defer pubsub.Close()
	// abonnement confirmé avant l'instantané : aucun événement perdu entre les deux
	if _, err := pubsub.Receive(ctx); err != nil {
		log.Printf("❌ Abonnement panier %s impossible: %v", user.ID, err)
		return
	}
	events := pubsub.Channel()

	// lecture : seule la fermeture côté client nous intéresse
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := h.sendSnapshot(ctx, conn, user.ID, "cart_snapshot"); err != nil {
		log.Printf("❌ Erreur envoi WebSocket: %v", err)
		return
	}
	log.Printf("🔌 WebSocket panier ouvert pour %s", user.ID)

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("🔌 WebSocket panier fermé pour %s", user.ID)
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			kind := "cart_updated"
			if msg.Payload == cache.CartEventCleared {
				kind = "cart_cleared"
			}
			if err := h.sendSnapshot(ctx, conn, user.ID, kind); err != nil {
				log.Printf("❌ Erreur envoi WebSocket: %v", err)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (h *CartHandler) sendSnapshot(ctx context.Context, conn *websocket.Conn, userID, kind string) error {
	msg := cartMessage{Type: kind}
	cart, err := h.feed.Get(ctx, userID)
	switch {
	case errors.Is(err, cache.ErrCartNotFound):
	case err != nil:
		return err
	default:
		view := viewCart(cart)
		msg.Cart = &view
	}
	if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(msg)
}
