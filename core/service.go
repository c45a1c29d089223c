package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

var ErrGatewayNotFound = errors.New("core: gateway not registered")

// Service is the token lifecycle manager and transaction processor. All
// state lives in the injected stores; the service itself is safe for
// concurrent use.
type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	stateTokenStore   StateTokenStore
	modeLocker        ModeLocker
	registry          Registry
	connectionStore   ConnectionStore
	transactionStore  TransactionStore
	subscriptionStore SubscriptionStore
	nowFn             func() time.Time
}

type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	StateTokenStore   StateTokenStore
	ModeLocker        ModeLocker
	Registry          Registry
	ConnectionStore   ConnectionStore
	TransactionStore  TransactionStore
	SubscriptionStore SubscriptionStore
}

func NewService(cfg Config, options ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("payments", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("payments"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.registry == nil {
		builder.registry = NewGatewayRegistry()
	}
	if builder.stateTokenStore == nil {
		builder.stateTokenStore = NewMemoryStateTokenStore(defaultStateTokenTTL)
	}
	if builder.modeLocker == nil {
		builder.modeLocker = NewMemoryModeLocker()
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.repositoryFactory != nil {
		var storeProvider StoreProvider
		if storeFactory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			built, buildErr := storeFactory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return nil, mapBuildError(builder.errorMapper, buildErr)
			}
			storeProvider = built
		} else if built, ok := builder.repositoryFactory.(StoreProvider); ok {
			storeProvider = built
		}
		if storeProvider != nil {
			if builder.connectionStore == nil {
				builder.connectionStore = storeProvider.ConnectionStore()
			}
			if builder.transactionStore == nil {
				builder.transactionStore = storeProvider.TransactionStore()
			}
			if builder.subscriptionStore == nil {
				builder.subscriptionStore = storeProvider.SubscriptionStore()
			}
		}
	}
	if builder.connectionStore == nil {
		builder.connectionStore = NewMemoryConnectionStore()
	}
	if builder.transactionStore == nil {
		builder.transactionStore = NewMemoryTransactionStore()
	}
	if builder.subscriptionStore == nil {
		builder.subscriptionStore = NewMemorySubscriptionStore()
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		stateTokenStore:   builder.stateTokenStore,
		modeLocker:        builder.modeLocker,
		registry:          builder.registry,
		connectionStore:   builder.connectionStore,
		transactionStore:  builder.transactionStore,
		subscriptionStore: builder.subscriptionStore,
		nowFn:             func() time.Time { return time.Now().UTC() },
	}, nil
}

func Setup(cfg Config, options ...Option) (*Service, error) {
	return NewService(cfg, options...)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		StateTokenStore:   s.stateTokenStore,
		ModeLocker:        s.modeLocker,
		Registry:          s.registry,
		ConnectionStore:   s.connectionStore,
		TransactionStore:  s.transactionStore,
		SubscriptionStore: s.subscriptionStore,
	}
}

// Status derives the connection status for one mode from the stored record.
// A missing record is Disconnected, never an error.
func (s *Service) Status(ctx context.Context, mode Mode) (ConnectionStatus, error) {
	if s == nil {
		return ConnectionStatusDisconnected, fmt.Errorf("core: service is nil")
	}
	if err := mode.Validate(); err != nil {
		return ConnectionStatusDisconnected, s.mapError(err)
	}

	record, err := s.connectionStore.Get(ctx, mode)
	if err != nil {
		if errors.Is(err, ErrConnectionNotFound) {
			return ConnectionStatusDisconnected, nil
		}
		return ConnectionStatusDisconnected, s.mapError(err)
	}

	return DeriveStatus(&record, StatusInputs{
		OrgCurrency: s.config.OrgCurrency,
		Now:         s.now(),
		RefreshLead: s.RefreshLead(),
	}), nil
}

func (s *Service) Connect(ctx context.Context, req ConnectRequest) (response BeginAuthorizeResponse, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"gateway_id": s.gatewayID(),
		"mode":       string(req.Mode),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "connect", err, fields)
	}()

	if err = req.Mode.Validate(); err != nil {
		err = s.mapError(err)
		return BeginAuthorizeResponse{}, err
	}

	gateway, err := s.resolveGateway()
	if err != nil {
		return BeginAuthorizeResponse{}, err
	}

	state, generateErr := generateStateToken()
	if generateErr != nil {
		err = s.mapError(generateErr)
		return BeginAuthorizeResponse{}, err
	}

	response, err = gateway.BeginAuthorize(ctx, BeginAuthorizeRequest{
		Mode:        req.Mode,
		State:       state,
		RedirectURI: req.RedirectURI,
	})
	if err != nil {
		err = s.mapError(err)
		return BeginAuthorizeResponse{}, err
	}
	if strings.TrimSpace(response.State) == "" {
		response.State = state
	}

	saveErr := s.stateTokenStore.Save(ctx, StateTokenRecord{
		Token:       response.State,
		Mode:        req.Mode,
		GatewayID:   gateway.ID(),
		RedirectURI: req.RedirectURI,
		CreatedAt:   s.now(),
	})
	if saveErr != nil {
		err = s.mapError(saveErr)
		return BeginAuthorizeResponse{}, err
	}

	return response, nil
}

// CompleteCallback redeems the callback state and exchanges the grant code.
// The state token is consumed before any validation, so a replayed callback
// always fails regardless of outcome.
func (s *Service) CompleteCallback(ctx context.Context, req CallbackRequest) (record ConnectionRecord, err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"gateway_id": s.gatewayID(),
		"mode":       string(req.Mode),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "complete_callback", err, fields)
	}()

	if err = req.Mode.Validate(); err != nil {
		err = s.mapError(err)
		return ConnectionRecord{}, err
	}
	if strings.TrimSpace(req.Code) == "" {
		err = s.mapError(fmt.Errorf("core: authorization code is required"))
		return ConnectionRecord{}, err
	}

	stateRecord, consumeErr := s.stateTokenStore.Consume(ctx, req.State)
	if consumeErr != nil {
		err = s.mapError(fmt.Errorf("core: state token rejected: %w", consumeErr))
		return ConnectionRecord{}, err
	}
	if stateRecord.Mode != req.Mode {
		err = s.mapError(fmt.Errorf("core: state token mode mismatch: issued for %q, redeemed for %q", stateRecord.Mode, req.Mode))
		return ConnectionRecord{}, err
	}

	gateway, err := s.resolveGateway()
	if err != nil {
		return ConnectionRecord{}, err
	}

	exchange, exchangeErr := gateway.ExchangeCode(ctx, ExchangeCodeRequest{
		Mode:        req.Mode,
		Code:        req.Code,
		RedirectURI: req.RedirectURI,
	})
	if exchangeErr != nil {
		err = s.mapError(exchangeErr)
		return ConnectionRecord{}, err
	}

	now := s.now()
	record = ConnectionRecord{
		Mode:           req.Mode,
		GatewayID:      gateway.ID(),
		AccessToken:    exchange.AccessToken,
		RefreshToken:   exchange.RefreshToken,
		MerchantID:     exchange.MerchantID,
		TokenIssuedAt:  exchange.IssuedAt,
		TokenExpiresAt: exchange.ExpiresAt,
		LastProbeOK:    true,
	}
	if record.TokenIssuedAt.IsZero() {
		record.TokenIssuedAt = now
	}

	location, locationErr := gateway.PrimaryLocation(ctx, record)
	if locationErr != nil {
		err = s.mapError(locationErr)
		return ConnectionRecord{}, err
	}
	record.LocationID = location.ID
	record.LocationCurrency = location.Currency

	if notificationURL := strings.TrimSpace(s.config.NotificationURL); notificationURL != "" {
		subscriptionID, registerErr := gateway.RegisterWebhook(ctx, record, notificationURL)
		if registerErr != nil {
			s.logError(ctx, "webhook registration failed", map[string]any{
				"gateway_id": gateway.ID(),
				"mode":       string(req.Mode),
				"error":      registerErr.Error(),
			})
		} else {
			record.WebhookSubscriptionID = subscriptionID
		}
	}

	if saveErr := s.connectionStore.Save(ctx, record); saveErr != nil {
		err = s.mapError(saveErr)
		return ConnectionRecord{}, err
	}

	return record, nil
}

// Disconnect tears the mode down. Remote webhook removal is best effort; the
// local wipe always happens.
func (s *Service) Disconnect(ctx context.Context, mode Mode) (err error) {
	startedAt := time.Now().UTC()
	fields := map[string]any{
		"gateway_id": s.gatewayID(),
		"mode":       string(mode),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "disconnect", err, fields)
	}()

	if err = mode.Validate(); err != nil {
		err = s.mapError(err)
		return err
	}

	record, getErr := s.connectionStore.Get(ctx, mode)
	if getErr == nil && strings.TrimSpace(record.WebhookSubscriptionID) != "" {
		if gateway, resolveErr := s.resolveGateway(); resolveErr == nil {
			if unregisterErr := gateway.UnregisterWebhook(ctx, record); unregisterErr != nil {
				s.logError(ctx, "webhook unregister failed", map[string]any{
					"gateway_id": gateway.ID(),
					"mode":       string(mode),
					"error":      unregisterErr.Error(),
				})
			}
		}
	}

	if clearErr := s.connectionStore.Clear(ctx, mode); clearErr != nil {
		err = s.mapError(clearErr)
		return err
	}
	return nil
}

// Refresh renews the stored token under the per-mode lock. Contention maps
// to a refresh-in-progress conflict; auth failures flip the stored record
// invalid and drop the webhook subscription id.
func (s *Service) Refresh(ctx context.Context, req RefreshRequest) (record ConnectionRecord, err error) {
	startedAt := time.Now().UTC()
	trigger := req.Trigger
	if trigger == "" {
		trigger = RefreshTriggerManual
	}
	fields := map[string]any{
		"gateway_id": s.gatewayID(),
		"mode":       string(req.Mode),
		"trigger":    string(trigger),
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "refresh", err, fields)
	}()

	if err = req.Mode.Validate(); err != nil {
		err = s.mapError(err)
		return ConnectionRecord{}, err
	}

	handle, lockErr := s.modeLocker.Acquire(ctx, req.Mode, defaultRefreshLockTTL)
	if lockErr != nil {
		err = s.mapError(lockErr)
		return ConnectionRecord{}, err
	}
	defer func() {
		_ = handle.Unlock(ctx)
	}()

	current, getErr := s.connectionStore.Get(ctx, req.Mode)
	if getErr != nil {
		err = s.mapError(fmt.Errorf("core: mode %q is not connected: %w", req.Mode, getErr))
		return ConnectionRecord{}, err
	}
	if !current.HasTokens() {
		err = s.mapError(fmt.Errorf("core: mode %q is not connected: credentials missing", req.Mode))
		return ConnectionRecord{}, err
	}

	gateway, err := s.resolveGateway()
	if err != nil {
		return ConnectionRecord{}, err
	}

	exchange, refreshErr := gateway.RefreshToken(ctx, current)
	if refreshErr != nil {
		if Classify(refreshErr) == ClassAuthFailure {
			invalidated := current
			invalidated.LastProbeOK = false
			invalidated.LastProbeError = refreshErr.Error()
			invalidated.WebhookSubscriptionID = ""
			if saveErr := s.connectionStore.Save(ctx, invalidated); saveErr != nil {
				s.logError(ctx, "record invalidation failed", map[string]any{
					"mode":  string(req.Mode),
					"error": saveErr.Error(),
				})
			}
		}
		err = s.mapError(refreshErr)
		return ConnectionRecord{}, err
	}

	record = current
	record.AccessToken = exchange.AccessToken
	if strings.TrimSpace(exchange.RefreshToken) != "" {
		record.RefreshToken = exchange.RefreshToken
	}
	if strings.TrimSpace(exchange.MerchantID) != "" {
		record.MerchantID = exchange.MerchantID
	}
	record.TokenIssuedAt = exchange.IssuedAt
	if record.TokenIssuedAt.IsZero() {
		record.TokenIssuedAt = s.now()
	}
	record.TokenExpiresAt = exchange.ExpiresAt
	record.LastProbeOK = true
	record.LastProbeError = ""

	if saveErr := s.connectionStore.Save(ctx, record); saveErr != nil {
		err = s.mapError(saveErr)
		return ConnectionRecord{}, err
	}

	return record, nil
}

// RefreshLead is the configured window before expiry in which the scheduled
// tick renews tokens.
func (s *Service) RefreshLead() time.Duration {
	if s == nil {
		return 0
	}
	return time.Duration(s.config.RefreshLeadDays) * 24 * time.Hour
}

func (s *Service) resolveGateway() (PaymentGateway, error) {
	if s == nil || s.registry == nil {
		return nil, fmt.Errorf("core: service registry is not configured")
	}
	id := s.gatewayID()
	gateway, ok := s.registry.Get(id)
	if !ok || gateway == nil {
		return nil, s.mapError(fmt.Errorf("%w: %q", ErrGatewayNotFound, id))
	}
	return gateway, nil
}

func (s *Service) gatewayID() string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(s.config.GatewayID)
}

func (s *Service) now() time.Time {
	if s == nil || s.nowFn == nil {
		return time.Now().UTC()
	}
	return s.nowFn()
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	mapped := s.errorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

var _ PaymentService = (*Service)(nil)
