package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"reunite/internal/demographics"
	dirhandler "reunite/internal/directory/handler"
	dirmetrics "reunite/internal/directory/metrics"
	dmodels "reunite/internal/directory/models"
	dirservice "reunite/internal/directory/service"
	dirstore "reunite/internal/directory/store"
	"reunite/internal/facematch/extractor"
	fmhandler "reunite/internal/facematch/handler"
	"reunite/internal/facematch/index"
	fmmetrics "reunite/internal/facematch/metrics"
	fmmodels "reunite/internal/facematch/models"
	fmservice "reunite/internal/facematch/service"
	fmstore "reunite/internal/facematch/store"
	famhandler "reunite/internal/family/handler"
	fammodels "reunite/internal/family/models"
	famservice "reunite/internal/family/service"
	famstore "reunite/internal/family/store"
	hosphandler "reunite/internal/hospital/handler"
	hospmodels "reunite/internal/hospital/models"
	hospservice "reunite/internal/hospital/service"
	hospstore "reunite/internal/hospital/store"
	jwttoken "reunite/internal/jwt_token"
	"reunite/internal/notify/dispatch"
	"reunite/internal/notify/engine"
	notifyhandler "reunite/internal/notify/handler"
	notifymetrics "reunite/internal/notify/metrics"
	notifymodels "reunite/internal/notify/models"
	notifystore "reunite/internal/notify/store"
	"reunite/internal/notify/transport"
	"reunite/internal/platform/config"
	"reunite/internal/platform/kafka"
	"reunite/internal/platform/metrics"
	"reunite/internal/platform/mqtt"
	"reunite/internal/platform/postgres"
	"reunite/internal/platform/redis"
	rephandler "reunite/internal/replication/handler"
	"reunite/internal/replication/hub"
	repmetrics "reunite/internal/replication/metrics"
	"reunite/internal/replication/outbox"
	"reunite/internal/replication/reconcile"
	"reunite/internal/replication/worker"
	httptransport "reunite/internal/transport/http"
	dErrors "reunite/pkg/domain-errors"
	"reunite/pkg/platform/httputil"
	"reunite/pkg/platform/retry"
	"reunite/pkg/platform/tx"
)

const (
	extractorConcurrency = 4
	memoryQueueSize      = 1024
)

// app is the assembled node: the HTTP router, the two background workers
// and the connections to close on shutdown.
type app struct {
	Router    http.Handler
	Sync      *worker.Worker
	Dispatch  *dispatch.Worker
	Directory *dirservice.Service
	closers   []func() error
	log       *slog.Logger
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", "error", err)
		}
	}
}

// stores groups the persistence for every module. Without DATABASE_URL the
// node runs on in-memory stores.
type stores struct {
	hospitals     hospservice.Store
	locations     dirservice.Store
	photos        fmservice.Store
	family        famservice.Store
	notifications notificationStore
	outbox        outbox.Store
	reconcile     reconcile.Store
	runner        tx.Runner
	db            *sql.DB
}

// notificationStore is read by the engine and by the dispatch worker.
type notificationStore interface {
	engine.Store
	dispatch.Store
}

func build(ctx context.Context, cfg config.Server, log *slog.Logger) (*app, error) {
	a := &app{log: log}
	self := cfg.HospitalID

	st, err := openStores(ctx, cfg, log, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	reg := metrics.NewRegistry()
	writer := outbox.NewWriter(st.outbox, self)

	hospitals := hospservice.New(st.hospitals, writer, self,
		hospservice.WithLogger(log),
		hospservice.WithTx(st.runner),
	)
	if _, err := hospitals.Get(ctx, self); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeHospitalNotRegistered) {
			a.Close()
			return nil, fmt.Errorf("load local hospital: %w", err)
		}
		log.Warn("local hospital not registered; register it via POST /v1/hospitals", "hospital_id", self.String())
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		a.Close()
		return nil, err
	}
	var queue interface {
		engine.Queue
		dispatch.Queue
	}
	locker := worker.Locker(worker.NewLocalLocker())
	if rc != nil {
		a.closers = append(a.closers, rc.Close)
		queue = dispatch.NewRedisQueue(rc.Client, self)
		locker = worker.NewRedisLocker(rc.Locker)
	} else {
		log.Warn("REDIS_URL not set; delivery queue and sync lock are process-local")
		queue = dispatch.NewMemoryQueue(memoryQueueSize)
	}

	var demo demographics.Service = demographics.NewInMemory()
	if cfg.Integrations.DemographicsURL != "" {
		demo = demographics.NewHTTPClient(cfg.Integrations.DemographicsURL)
	}

	sends := transport.NewRouter()
	if cfg.Integrations.SMSGatewayURL != "" {
		sends.Handle(transport.NewGateway(cfg.Integrations.SMSGatewayURL, cfg.Integrations.SMSGatewayAPIKey),
			notifymodels.ChannelSMS, notifymodels.ChannelEmail)
	} else {
		log.Warn("SMS_GATEWAY_URL not set; sms and email notifications will fail delivery")
	}
	var relay dirservice.Relay
	if cfg.MQTT.Broker != "" {
		mc, err := mqtt.NewClient(cfg.MQTT)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() error { mc.Disconnect(); return nil })
		radio := transport.NewRadio(mc, cfg.MQTT.Topic)
		sends.Handle(radio, notifymodels.ChannelRadio)
		relay = radio
	}

	notifyMetrics := notifymetrics.New(reg)
	eng := engine.New(st.notifications, st.locations, st.family, demo, hospitals, writer, self,
		engine.WithLogger(log),
		engine.WithTx(st.runner),
		engine.WithMetrics(notifyMetrics),
		engine.WithQueue(queue),
	)

	dirOpts := []dirservice.Option{
		dirservice.WithLogger(log),
		dirservice.WithTx(st.runner),
		dirservice.WithMetrics(dirmetrics.New(reg)),
		dirservice.WithNotifier(eng),
		dirservice.WithReconciler(st.reconcile),
		dirservice.WithAutoTransfer(cfg.AutoTransferOnReidentify),
	}
	if relay != nil {
		dirOpts = append(dirOpts, dirservice.WithRelay(relay))
	}
	directory := dirservice.New(st.locations, hospitals, writer, self, dirOpts...)
	a.Directory = directory

	family := famservice.New(st.family, writer,
		famservice.WithLogger(log),
		famservice.WithTx(st.runner),
		famservice.WithLinkListener(eng),
	)

	var ext extractor.Extractor
	if cfg.Integrations.ExtractorURL != "" {
		ext = extractor.NewBounded(extractor.NewHTTPClient(cfg.Integrations.ExtractorURL), extractorConcurrency,
			extractor.Timeouts{Wait: 5 * time.Second, Call: 20 * time.Second})
	} else {
		log.Warn("EXTRACTOR_URL not set; using the deterministic development extractor")
		ext = extractor.NewDeterministic()
	}
	faces := fmservice.New(st.photos, index.New(), ext, hospitals, directory, writer, self,
		fmservice.WithLogger(log),
		fmservice.WithTx(st.runner),
		fmservice.WithMetrics(fmmetrics.New(reg)),
		fmservice.WithSearchDefaults(cfg.Match.DistanceThreshold, cfg.Match.MaxResults),
	)
	if err := faces.Warm(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("warm face index: %w", err)
	}

	dispatchCfg := dispatch.DefaultConfig()
	dispatchCfg.MaxRetries = cfg.Delivery.MaxRetries
	dispatchCfg.SweepInterval = cfg.Delivery.SweepInterval
	a.Dispatch = dispatch.NewWorker(st.notifications, queue, sends, writer, self,
		dispatch.WithLogger(log),
		dispatch.WithTx(st.runner),
		dispatch.WithMetrics(notifyMetrics),
		dispatch.WithConfig(dispatchCfg),
	)

	h, err := openHub(ctx, cfg, log, a)
	if err != nil {
		a.Close()
		return nil, err
	}
	router := worker.NewRouter(log)
	router.Register(outbox.EntityHospital, worker.Decode[hospmodels.Hospital](hospitals.ApplyReplicated))
	router.Register(outbox.EntityHeartbeat, worker.Decode[hospmodels.Hospital](hospitals.ApplyReplicated))
	router.Register(outbox.EntityPatientPhoto, worker.Decode[fmmodels.Photo](faces.ApplyReplicatedPhoto))
	router.Register(outbox.EntityPatientLocation, worker.Decode[dmodels.LocationRecord](directory.ApplyReplicatedLocation))
	router.Register(outbox.EntityHospitalBroadcast, worker.Decode[dmodels.Broadcast](directory.ApplyReplicatedBroadcast))
	router.Register(outbox.EntityFamilyRelationship, worker.Decode[fammodels.Relationship](family.ApplyReplicated))
	router.Register(outbox.EntityFamilyNotification, worker.Decode[notifymodels.Notification](eng.ApplyReplicated))

	syncCfg := worker.DefaultConfig()
	syncCfg.Interval = cfg.Sync.Interval
	syncCfg.Backoff = retry.Backoff{Base: syncCfg.Backoff.Base, Max: cfg.Sync.MaxBackoff}
	syncCfg.MaxRetries = cfg.Sync.MaxRetries
	syncCfg.OfflineAfter = cfg.Sync.OfflineAfter
	syncCfg.BatchSize = cfg.Sync.BatchSize
	a.Sync = worker.New(st.outbox, h, router, hospitals, self,
		worker.WithLogger(log),
		worker.WithMetrics(repmetrics.New(reg)),
		worker.WithConfig(syncCfg),
		worker.WithLocker(locker),
	)

	hospitalHandler := hosphandler.New(hospitals, log)
	a.Router = httptransport.NewRouter(httptransport.Config{
		Logger:    log,
		Validator: jwttoken.NewAdapter(jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)),
		Handlers: []httptransport.DomainHandler{
			hospitalHandler,
			dirhandler.New(directory, log),
			fmhandler.New(faces, log),
			famhandler.New(family, log),
			notifyhandler.New(eng, log),
		},
		Admin: []httptransport.DomainHandler{
			hospitalHandler,
			rephandler.New(st.outbox, st.reconcile, self, log),
		},
		Health:  health(st.db, rc),
		Metrics: metrics.Handler(reg),
	})
	return a, nil
}

func openStores(ctx context.Context, cfg config.Server, log *slog.Logger, a *app) (*stores, error) {
	st := &stores{}
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set; using in-memory stores")
		st.hospitals = hospstore.NewInMemory()
		st.locations = dirstore.NewInMemory()
		st.photos = fmstore.NewInMemory()
		st.family = famstore.NewInMemory()
		st.notifications = notifystore.NewInMemory()
		st.outbox = outbox.NewInMemory()
		st.reconcile = reconcile.NewInMemory()
		st.runner = tx.NewShardedRunner()
	} else {
		db, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, err
		}
		st.db = db
		st.hospitals = hospstore.NewPostgres(db)
		st.locations = dirstore.NewPostgres(db)
		st.photos = fmstore.NewPostgres(db)
		st.family = famstore.NewPostgres(db)
		st.notifications = notifystore.NewPostgres(db)
		st.outbox = outbox.NewPostgres(db)
		st.reconcile = reconcile.NewPostgres(db)
		st.runner = tx.NewSQLRunner(db)
	}

	if cfg.Neo4j.URI != "" {
		driver, err := famstore.OpenNeo4j(ctx, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { return driver.Close(context.Background()) })
		graph := famstore.NewNeo4j(driver, "")
		if err := graph.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		st.family = graph
	}
	return st, nil
}

// openHub connects to the Kafka sync topic. Without KAFKA_BROKERS the node
// replicates over an in-process network with no peers.
func openHub(ctx context.Context, cfg config.Server, log *slog.Logger, a *app) (hub.Hub, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Warn("KAFKA_BROKERS not set; running as a single node")
		return hub.NewNetwork().Endpoint(cfg.HospitalID), nil
	}
	client, err := kafka.NewClient(cfg.Kafka, "reunite-"+cfg.HospitalID.String())
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { client.Close(); return nil })
	if err := kafka.EnsureTopic(ctx, client, cfg.Kafka.Topic, 1, 1); err != nil {
		return nil, err
	}
	return hub.NewKafka(client, hub.WithKafkaLogger(log), hub.WithPublishTimeout(cfg.Kafka.PublishTimeout)), nil
}

func health(db *sql.DB, rc *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := map[string]string{"status": "ok"}
		code := http.StatusOK
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				status["status"], status["database"], code = "degraded", "unreachable", http.StatusServiceUnavailable
			}
		}
		if rc != nil {
			if err := rc.Health(ctx); err != nil {
				status["status"], status["redis"], code = "degraded", "unreachable", http.StatusServiceUnavailable
			}
		}
		httputil.WriteJSON(w, code, status)
	}
}
