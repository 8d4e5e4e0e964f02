// Package http exposes the engine over a JSON API. Authentication is a
// bearer access token; the authenticated account id is the caller for every
// ownership check downstream.
package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"stakelend-backend/internal/security"
	"stakelend-backend/internal/service"
)

// Server bundles the services behind the HTTP handlers.
type Server struct {
	auth          service.AuthService
	stake         service.StakeService
	rental        service.RentalService
	ledger        service.LedgerService
	admin         service.AdminService
	notifications service.NotificationService
	tokens        security.TokenManager
}

func NewServer(
	auth service.AuthService,
	stake service.StakeService,
	rental service.RentalService,
	ledger service.LedgerService,
	admin service.AdminService,
	notifications service.NotificationService,
	tokens security.TokenManager,
) *Server {
	return &Server{
		auth:          auth,
		stake:         stake,
		rental:        rental,
		ledger:        ledger,
		admin:         admin,
		notifications: notifications,
		tokens:        tokens,
	}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	// Public auth endpoints
	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)

	// Everything else requires an access token
	authed := api.NewRoute().Subrouter()
	authed.Use(s.authMiddleware)

	// Assets and custody
	authed.HandleFunc("/assets", s.handleRegisterAsset).Methods(http.MethodPost)
	authed.HandleFunc("/assets/{contract}/{tokenID}/approval", s.handleApproveCustody).Methods(http.MethodPost)
	authed.HandleFunc("/operators/approval", s.handleSetOperatorApproval).Methods(http.MethodPost)
	authed.HandleFunc("/assets/{contract}/{tokenID}/grant", s.handleGetGrant).Methods(http.MethodGet)
	authed.HandleFunc("/assets/{contract}/{tokenID}/position", s.handleGetPositionByAsset).Methods(http.MethodGet)

	// Positions
	authed.HandleFunc("/positions", s.handleStake).Methods(http.MethodPost)
	authed.HandleFunc("/positions/mine", s.handleListMyPositions).Methods(http.MethodGet)
	authed.HandleFunc("/positions/{id:[0-9]+}", s.handleGetPosition).Methods(http.MethodGet)
	authed.HandleFunc("/positions/{id:[0-9]+}", s.handleWithdrawAsset).Methods(http.MethodDelete)
	authed.HandleFunc("/positions/{id:[0-9]+}/condition", s.handleGetCondition).Methods(http.MethodGet)
	authed.HandleFunc("/positions/{id:[0-9]+}/condition", s.handleSetCondition).Methods(http.MethodPut)
	authed.HandleFunc("/positions/{id:[0-9]+}/condition/fee-per-day", s.handleChangeFeePerDay).Methods(http.MethodPatch)
	authed.HandleFunc("/positions/{id:[0-9]+}/condition/lend-limit-date", s.handleChangeLendLimitDate).Methods(http.MethodPatch)
	authed.HandleFunc("/positions/{id:[0-9]+}/condition/minimum-period", s.handleChangeMinimumPeriod).Methods(http.MethodPatch)
	authed.HandleFunc("/positions/{id:[0-9]+}/condition/affiliate-reward", s.handleChangeAffiliateReward).Methods(http.MethodPatch)
	authed.HandleFunc("/positions/{id:[0-9]+}/balance", s.handleGetPositionBalance).Methods(http.MethodGet)
	authed.HandleFunc("/positions/{id:[0-9]+}/balance/withdraw", s.handleWithdrawBalance).Methods(http.MethodPost)
	authed.HandleFunc("/contracts/{contract}/positions", s.handleListByContract).Methods(http.MethodGet)

	// Receipts
	authed.HandleFunc("/receipts/{serial}", s.handleGetReceipt).Methods(http.MethodGet)
	authed.HandleFunc("/receipts/{serial}/transfer", s.handleTransferReceipt).Methods(http.MethodPost)

	// Rentals
	authed.HandleFunc("/positions/{id:[0-9]+}/quote", s.handleQuote).Methods(http.MethodPost)
	authed.HandleFunc("/positions/{id:[0-9]+}/borrow", s.handleBorrow).Methods(http.MethodPost)
	authed.HandleFunc("/positions/{id:[0-9]+}/extend", s.handleExtend).Methods(http.MethodPost)

	// Broker and affiliate balances
	authed.HandleFunc("/balances/broker", s.handleGetBrokerBalance).Methods(http.MethodGet)
	authed.HandleFunc("/balances/broker/withdraw", s.handleWithdrawBrokerBalance).Methods(http.MethodPost)
	authed.HandleFunc("/balances/affiliate", s.handleGetAffiliateBalance).Methods(http.MethodGet)
	authed.HandleFunc("/balances/affiliate/withdraw", s.handleWithdrawAffiliateBalance).Methods(http.MethodPost)
	authed.HandleFunc("/ledger/entries", s.handleListEntries).Methods(http.MethodGet)

	// Governance
	authed.HandleFunc("/admin/fees", s.handleGetFees).Methods(http.MethodGet)
	authed.HandleFunc("/admin/fees/protocol", s.handleSetProtocolFee).Methods(http.MethodPut)
	authed.HandleFunc("/admin/fees/broker", s.handleSetBrokerFee).Methods(http.MethodPut)
	authed.HandleFunc("/admin/treasury", s.handleGetTreasury).Methods(http.MethodGet)
	authed.HandleFunc("/admin/treasury/withdraw", s.handleWithdrawTreasury).Methods(http.MethodPost)

	// Notifications
	authed.HandleFunc("/notifications", s.handleListNotifications).Methods(http.MethodGet)
	authed.HandleFunc("/notifications/{id:[0-9]+}/read", s.handleMarkNotificationRead).Methods(http.MethodPost)

	return r
}
