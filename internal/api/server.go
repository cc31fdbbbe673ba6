package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pricehunt/internal/advisor"
	"pricehunt/internal/arcade"
	"pricehunt/internal/config"
	"pricehunt/internal/ledger"
	"pricehunt/internal/market"
	"pricehunt/internal/ratelimit"
	"pricehunt/internal/shot"
)

type contextKey string

const playerContextKey contextKey = "player"

type Server struct {
	cfg     config.APIConfig
	log     *slog.Logger
	market  *market.Engine
	ledger  *ledger.Service
	shots   *shot.Pipeline
	limiter *ratelimit.Limiter
	coach   *advisor.Client
	stream  *Stream
	mux     *chi.Mux
}

// New wires the full HTTP surface. coach may be nil when no advisor
// endpoint is configured; the route then answers 503.
func New(cfg config.APIConfig, logger *slog.Logger, eng *market.Engine, led *ledger.Service, shots *shot.Pipeline, lim *ratelimit.Limiter, coach *advisor.Client, stream *Stream) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		log:     logger,
		market:  eng,
		ledger:  led,
		shots:   shots,
		limiter: lim,
		coach:   coach,
		stream:  stream,
		mux:     chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.playerMiddleware)

		r.Get("/catalog", s.handleCatalog)
		r.Get("/items/{id}", s.handleItemDetail)
		r.Post("/items/{id}/view", s.handleViewStart)
		r.Delete("/items/{id}/view", s.handleViewStop)

		r.Post("/shots", s.handleShot)
		r.Post("/shots/{id}/commit", s.handleShotCommit)
		r.Post("/shots/{id}/discard", s.handleShotDiscard)

		r.Get("/wallet", s.handleWallet)
		r.Post("/vault/{item_id}/trade-in", s.handleTradeIn)
		r.Post("/shipping/move", s.handleShippingMove)
		r.Post("/shipping/{shipping_id}/recall", s.handleShippingRecall)
		r.Post("/shipping/confirm", s.handleShippingConfirm)

		r.Post("/coach", s.handleCoach)

		r.Post("/arcade/bot-move", s.handleBotMove)
		r.Get("/arcade/puzzle", s.handlePuzzle)
		r.Post("/arcade/puzzle/verify", s.handlePuzzleVerify)

		if s.stream != nil {
			r.Get("/stream", s.stream.Handler())
		}
	})
}

// playerMiddleware requires an X-Player-ID header and provisions the
// ledger account. Verifying the id belongs to a real player is the job
// of whatever sits in front of this service.
func (s *Server) playerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		playerID := strings.TrimSpace(r.Header.Get("X-Player-ID"))
		if playerID == "" {
			writeError(w, http.StatusUnauthorized, "missing X-Player-ID header")
			return
		}
		s.ledger.EnsureAccount(playerID)
		ctx := context.WithValue(r.Context(), playerContextKey, playerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func playerFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(playerContextKey).(string)
	if !ok || id == "" {
		return "", errors.New("missing player context")
	}
	return id, nil
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": s.market.Items()})
}

func (s *Server) handleItemDetail(w http.ResponseWriter, r *http.Request) {
	out, err := s.market.Detail(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleViewStart(w http.ResponseWriter, r *http.Request) {
	if err := s.market.StartViewing(chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleViewStop(w http.ResponseWriter, r *http.Request) {
	if err := s.market.StopViewing(chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleShot(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		ItemID string `json:"item_id"`
		Mode   string `json:"mode"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, err := s.shots.Capture(playerID, in.ItemID, shot.Mode(in.Mode))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (s *Server) handleShotCommit(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		PriceMicros int64 `json:"price_micros"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := s.shots.Commit(r.Context(), playerID, chi.URLParam(r, "id"), in.PriceMicros)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleShotDiscard(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err := s.shots.Discard(playerID, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.ledger.Wallet(playerID))
}

// handleTradeIn prices the trade-in from the live simulation minus the
// configured haircut. The ledger only books the computed value.
func (s *Server) handleTradeIn(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	vaultItemID := chi.URLParam(r, "item_id")

	wallet := s.ledger.Wallet(playerID)
	var itemID string
	for _, v := range wallet.Vault {
		if v.ID == vaultItemID {
			itemID = v.Item.ID
			break
		}
	}
	if itemID == "" {
		writeDomainError(w, ledger.ErrVaultItemNotFound)
		return
	}
	current, err := s.market.CurrentPrice(itemID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	valueMicros := current - int64(float64(current)*s.cfg.TradeInHaircut)

	balance, err := s.ledger.TradeIn(r.Context(), playerID, vaultItemID, valueMicros)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"value_micros":   valueMicros,
		"balance_micros": balance,
	})
}

func (s *Server) handleShippingMove(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var in struct {
		VaultItemIDs []string `json:"vault_item_ids"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	moved, err := s.ledger.MoveToShipping(r.Context(), playerID, in.VaultItemIDs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"moved": moved})
}

func (s *Server) handleShippingRecall(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	item, err := s.ledger.RecallFromShipping(r.Context(), playerID, chi.URLParam(r, "shipping_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item": item})
}

func (s *Server) handleShippingConfirm(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	shipped, err := s.ledger.ConfirmShipment(r.Context(), playerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shipped": shipped})
}

func (s *Server) handleCoach(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if s.coach == nil {
		writeError(w, http.StatusServiceUnavailable, "coach is not configured")
		return
	}
	if !s.limiter.Allow(playerID, "coach", s.cfg.CoachLimitPerMinute) {
		writeError(w, http.StatusTooManyRequests, "coach rate limit exceeded")
		return
	}
	var in struct {
		ItemID   string `json:"item_id"`
		Question string `json:"question"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	detail, err := s.market.Detail(in.ItemID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	answer, err := s.coach.Generate(r.Context(), coachPrompt(detail, s.ledger.Balance(playerID), in.Question), advisor.GenerateConfig{
		Temperature: s.cfg.AdvisorTemperature,
		MaxTokens:   s.cfg.AdvisorMaxTokens,
	})
	if err != nil {
		s.log.Error("coach generation failed", "player_id", playerID, "err", err)
		writeError(w, http.StatusBadGateway, "coach is unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"answer": answer})
}

func coachPrompt(detail market.ItemView, balanceMicros int64, question string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You coach a player in a price-hunting game.\n")
	fmt.Fprintf(&b, "Item %q: current price %d micros, market price %d micros.\n",
		detail.Name, detail.CurrentPriceMicros, detail.MarketPriceMicros)
	if n := len(detail.History); n > 0 {
		fmt.Fprintf(&b, "Recent prices (oldest first):")
		for _, p := range detail.History {
			fmt.Fprintf(&b, " %d", p.PriceMicros)
		}
		fmt.Fprintf(&b, "\n")
	}
	fmt.Fprintf(&b, "Player balance: %d micros.\n", balanceMicros)
	fmt.Fprintf(&b, "Question: %s\nAnswer in at most three sentences.", strings.TrimSpace(question))
	return b.String()
}

func (s *Server) handleBotMove(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Seed       string   `json:"seed"`
		Round      int      `json:"round"`
		LegalMoves []string `json:"legal_moves"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	move, err := arcade.BotMove(in.Seed, in.Round, in.LegalMoves)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"move": move})
}

func (s *Server) handlePuzzle(w http.ResponseWriter, r *http.Request) {
	seed := strings.TrimSpace(r.URL.Query().Get("seed"))
	if seed == "" {
		writeError(w, http.StatusBadRequest, "seed is required")
		return
	}
	n := 5
	if raw := r.URL.Query().Get("cards"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid cards count")
			return
		}
		n = parsed
	}
	cards, err := arcade.DealCards(seed, n)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": cards})
}

func (s *Server) handlePuzzleVerify(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Seed  string        `json:"seed"`
		Cards []arcade.Card `json:"cards"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": arcade.VerifyDeal(in.Seed, in.Cards)})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrItemNotFound),
		errors.Is(err, ledger.ErrVaultItemNotFound),
		errors.Is(err, ledger.ErrShipmentNotFound),
		errors.Is(err, shot.ErrSnapshotNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, shot.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, shot.ErrAlreadySettled),
		errors.Is(err, ledger.ErrCooldownActive),
		errors.Is(err, ledger.ErrVaultFull),
		errors.Is(err, ledger.ErrShippingLimitExceeded),
		errors.Is(err, market.ErrDuplicateItem):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, shot.ErrInvalidSelection),
		errors.Is(err, shot.ErrUnknownMode),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, arcade.ErrNoLegalMoves),
		errors.Is(err, arcade.ErrBadDeal):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
