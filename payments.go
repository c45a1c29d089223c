package payments

import "github.com/goliatone/go-payments/core"

type Config = core.Config

type ModeConfig = core.ModeConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies

type Mode = core.Mode
type ConnectionStatus = core.ConnectionStatus
type ConnectionRecord = core.ConnectionRecord
type Transaction = core.Transaction
type Subscription = core.Subscription
type Cadence = core.Cadence

type ConnectionStore = core.ConnectionStore
type TransactionStore = core.TransactionStore
type SubscriptionStore = core.SubscriptionStore
type StateTokenStore = core.StateTokenStore
type ModeLocker = core.ModeLocker
type PaymentGateway = core.PaymentGateway
type Registry = core.Registry

type ConnectRequest = core.ConnectRequest
type CallbackRequest = core.CallbackRequest
type RefreshRequest = core.RefreshRequest
type ChargeRequest = core.ChargeRequest
type SubscribeRequest = core.SubscribeRequest
type CancelRequest = core.CancelRequest
type RefundOrderRequest = core.RefundOrderRequest

const (
	ModeTest = core.ModeTest
	ModeLive = core.ModeLive
)

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithStateTokenStore   = core.WithStateTokenStore
	WithModeLocker        = core.WithModeLocker
	WithRegistry          = core.WithRegistry
	WithConnectionStore   = core.WithConnectionStore
	WithTransactionStore  = core.WithTransactionStore
	WithSubscriptionStore = core.WithSubscriptionStore
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
