package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// ConnectionStore persists at most one ConnectionRecord per mode. Save
// replaces the whole record; partial patches go through read-modify-write
// inside the store so the last writer always wins on the full row.
type ConnectionStore interface {
	Get(ctx context.Context, mode Mode) (ConnectionRecord, error)
	Save(ctx context.Context, record ConnectionRecord) error
	Clear(ctx context.Context, mode Mode) error
	SetProbeResult(ctx context.Context, mode Mode, ok bool, reason string) error
}

type TransactionStore interface {
	Create(ctx context.Context, txn Transaction) (Transaction, error)
	Get(ctx context.Context, id string) (Transaction, error)
	GetByGatewayID(ctx context.Context, mode Mode, gatewayTransactionID string) (Transaction, error)
	UpdateStatus(ctx context.Context, id string, status TransactionStatus) error
}

type SubscriptionStore interface {
	Create(ctx context.Context, sub Subscription) (Subscription, error)
	Get(ctx context.Context, id string) (Subscription, error)
	GetByGatewayID(ctx context.Context, mode Mode, gatewaySubscriptionID string) (Subscription, error)
	UpdateStatus(ctx context.Context, id string, status SubscriptionStatus) error
}

type StoreProvider interface {
	ConnectionStore() ConnectionStore
	TransactionStore() TransactionStore
	SubscriptionStore() SubscriptionStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// StateTokenStore holds single-use connect state tokens. Consume removes the
// record before validating it, so a token can never be redeemed twice.
type StateTokenStore interface {
	Save(ctx context.Context, record StateTokenRecord) error
	Consume(ctx context.Context, token string) (StateTokenRecord, error)
}

type LockHandle interface {
	Unlock(ctx context.Context) error
}

// ModeLocker serializes refresh runs per mode. Acquire fails while another
// holder is live; TTL expiry reclaims locks abandoned by a crashed holder.
type ModeLocker interface {
	Acquire(ctx context.Context, mode Mode, ttl time.Duration) (LockHandle, error)
}

type Location struct {
	ID       string
	Currency string
}

type BeginAuthorizeRequest struct {
	Mode        Mode
	State       string
	RedirectURI string
}

type BeginAuthorizeResponse struct {
	URL   string
	State string
}

type ExchangeCodeRequest struct {
	Mode        Mode
	Code        string
	RedirectURI string
}

type TokenExchangeResult struct {
	AccessToken  string
	RefreshToken string
	MerchantID   string
	IssuedAt     time.Time
	ExpiresAt    time.Time
}

type PaymentRequest struct {
	SourceToken    string
	AmountMinor    int64
	Currency       string
	LocationID     string
	Note           string
	ReferenceID    string
	IdempotencyKey string
}

type PaymentResult struct {
	GatewayTransactionID string
	Status               string
	Completed            bool
}

type RefundRequest struct {
	GatewayTransactionID string
	AmountMinor          int64
	Currency             string
	Reason               string
	IdempotencyKey       string
}

type RefundResult struct {
	GatewayRefundID string
	Status          string
}

type SubscriptionRequest struct {
	Cadence        Cadence
	PlanName       string
	CustomerRef    string
	SourceToken    string
	AmountMinor    int64
	Currency       string
	LocationID     string
	IdempotencyKey string
}

type SubscriptionResult struct {
	GatewaySubscriptionID string
	GatewayCustomerID     string
	InitialPaymentID      string
	Active                bool
}

type CancelSubscriptionResult struct {
	AlreadyCanceled bool
}

// PaymentGateway is the full remote surface the lifecycle manager depends on.
// Implementations talk to exactly one provider environment; Mode routing
// happens in the caller through per-mode credentials.
type PaymentGateway interface {
	ID() string

	BeginAuthorize(ctx context.Context, req BeginAuthorizeRequest) (BeginAuthorizeResponse, error)
	ExchangeCode(ctx context.Context, req ExchangeCodeRequest) (TokenExchangeResult, error)
	RefreshToken(ctx context.Context, record ConnectionRecord) (TokenExchangeResult, error)
	PrimaryLocation(ctx context.Context, record ConnectionRecord) (Location, error)

	RegisterWebhook(ctx context.Context, record ConnectionRecord, notificationURL string) (string, error)
	UnregisterWebhook(ctx context.Context, record ConnectionRecord) error

	CreatePayment(ctx context.Context, record ConnectionRecord, req PaymentRequest) (PaymentResult, error)
	CreateRefund(ctx context.Context, record ConnectionRecord, req RefundRequest) (RefundResult, error)
	CreateSubscription(ctx context.Context, record ConnectionRecord, req SubscriptionRequest) (SubscriptionResult, error)
	CancelSubscription(ctx context.Context, record ConnectionRecord, gatewaySubscriptionID string) (CancelSubscriptionResult, error)
}

type Registry interface {
	Register(gateway PaymentGateway) error
	Get(gatewayID string) (PaymentGateway, bool)
	List() []PaymentGateway
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type CommandMessage interface {
	Type() string
}

type CommandDispatcher interface {
	Dispatch(ctx context.Context, msg any) error
}

// PaymentService is the operator-facing surface: token lifecycle plus the
// transaction processor. The command package dispatches into it.
type PaymentService interface {
	Status(ctx context.Context, mode Mode) (ConnectionStatus, error)
	Connect(ctx context.Context, req ConnectRequest) (BeginAuthorizeResponse, error)
	CompleteCallback(ctx context.Context, req CallbackRequest) (ConnectionRecord, error)
	Disconnect(ctx context.Context, mode Mode) error
	Refresh(ctx context.Context, req RefreshRequest) (ConnectionRecord, error)

	ChargeSingle(ctx context.Context, req ChargeRequest) (Transaction, error)
	ChargeSubscriptionInitial(ctx context.Context, req SubscribeRequest) (Subscription, error)
	CancelSubscription(ctx context.Context, req CancelRequest) (Subscription, error)
	Refund(ctx context.Context, req RefundOrderRequest) (Transaction, error)
}

type ConnectRequest struct {
	Mode        Mode
	RedirectURI string
}

type CallbackRequest struct {
	Mode        Mode
	Code        string
	State       string
	RedirectURI string
}

type RefreshRequest struct {
	Mode    Mode
	Trigger RefreshTrigger
}

type ChargeRequest struct {
	Mode        Mode
	DonationID  string
	SourceToken string
	AmountMinor int64
	Currency    string
	Note        string
}

type SubscribeRequest struct {
	Mode        Mode
	DonationID  string
	SourceToken string
	AmountMinor int64
	Currency    string
	Cadence     Cadence
	PlanName    string
	CustomerRef string
}

type CancelRequest struct {
	Mode                  Mode
	GatewaySubscriptionID string
}

type RefundOrderRequest struct {
	Mode          Mode
	TransactionID string
	AmountMinor   int64
	Reason        string
}
