// Package fakebackend is an in-memory implementation of the storefront REST
// backend, used for local development and end-to-end tests.
package fakebackend

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusmarket/storefront/internal/logger"
)

var (
	ErrUserExists      = errors.New("fakebackend: user already exists")
	ErrUnknownOrder    = errors.New("fakebackend: unknown order")
	ErrStatusChange    = errors.New("fakebackend: order status change not allowed")
	errInvalidPassword = errors.New("fakebackend: password too short")
)

const maxRequestBodySize = 1 << 20

type Server struct {
	log       *zap.Logger
	secret    []byte
	tokenTTL  time.Duration
	cost      int
	now       func() time.Time
	status    StatusSource
	publicURL string
	phoneCC   string
	phone     *regexp.Regexp
	validate  *validator.Validate

	mu        sync.Mutex
	users     map[string]*user
	byEmail   map[string]string
	products  map[string]productJSON
	carts     map[string][]lineJSON
	orders    map[string]*orderJSON
	orderSeq  []string
	orderKeys map[string]string
	mpesa     map[string]*mpesaTx
	mpesaKeys map[string]string
	hosted    map[string]*hostedTx
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.log = logger.OrNop(l) }
}

func WithSecret(secret string) Option {
	return func(s *Server) { s.secret = []byte(secret) }
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) { s.tokenTTL = ttl }
}

// WithBcryptCost sets the password hashing cost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Server) { s.cost = cost }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func WithStatusSource(src StatusSource) Option {
	return func(s *Server) { s.status = src }
}

// WithCountryCode sets the dialling prefix M-Pesa phone numbers must carry.
func WithCountryCode(code string) Option {
	return func(s *Server) { s.phoneCC = strings.TrimSpace(code) }
}

// WithPublicURL is the scheme and host hosted payment links point at.
func WithPublicURL(u string) Option {
	return func(s *Server) { s.publicURL = strings.TrimRight(u, "/") }
}

func New(opts ...Option) *Server {
	s := &Server{
		log:       zap.NewNop(),
		secret:    []byte("campus-market-dev-secret"),
		tokenTTL:  24 * time.Hour,
		cost:      bcrypt.DefaultCost,
		now:       time.Now,
		status:    RandomStatus{SettleAfter: 2},
		publicURL: "http://localhost:5000",
		phoneCC:   "254",
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		users:     make(map[string]*user),
		byEmail:   make(map[string]string),
		products:  make(map[string]productJSON),
		carts:     make(map[string][]lineJSON),
		orders:    make(map[string]*orderJSON),
		orderKeys: make(map[string]string),
		mpesa:     make(map[string]*mpesaTx),
		mpesaKeys: make(map[string]string),
		hosted:    make(map[string]*hostedTx),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.phone = regexp.MustCompile(`^` + regexp.QuoteMeta(s.phoneCC) + `\d{9}$`)
	return s
}

// Handler routes the REST API under /api and the hosted payment page under
// /pay.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(traceRequests)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/pay/{txRef}", s.hostedPage)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", s.login)
		r.Post("/auth/register", s.register)
		r.Get("/products/{id}", s.getProduct)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Get("/auth/me", s.me)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", s.getCart)
				r.Delete("/", s.clearCart)
				r.Post("/merge", s.mergeCart)
				r.Post("/save", s.saveCart)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", s.createOrder)
				r.Get("/my-orders", s.myOrders)
				r.Get("/{id}/tracking", s.tracking)
				r.With(requireRole(roleAdmin, roleSeller)).Put("/{id}/status", s.updateOrderStatus)
			})

			r.Route("/payment", func(r chi.Router) {
				r.Post("/mpesa/initiate", s.initiateMpesa)
				r.Get("/mpesa/status/{id}", s.mpesaStatus)
				r.Post("/initialize", s.initializeHosted)
				r.Get("/verify/{txRef}", s.verifyHosted)
			})
		})
	})
	return r
}

// AddProduct puts p into the catalog, replacing any product with its id.
func (s *Server) AddProduct(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = productJSON(p)
}

// SeedDemo loads a small catalog and a buyer account for local runs.
func (s *Server) SeedDemo() error {
	for _, p := range []Product{
		{ID: "p-textbook", Name: "Calculus textbook", Price: 1500, Images: []string{"/img/textbook.jpg"}, Seller: "u-seller", Stock: 4},
		{ID: "p-lamp", Name: "Desk lamp", Price: 850, Images: []string{"/img/lamp.jpg"}, Seller: "u-seller", Stock: 10},
		{ID: "p-kettle", Name: "Electric kettle", Price: 1200.5, Seller: "u-seller", Stock: 2},
	} {
		s.AddProduct(p)
	}
	_, err := s.AddUser("Demo Buyer", "buyer@campus.test", "password123", roleBuyer)
	if err != nil && !errors.Is(err, ErrUserExists) {
		return err
	}
	return nil
}
