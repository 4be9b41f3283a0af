//go:build integration

package main_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkamodule "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Kilat-Pet-Delivery/service-zone/internal/application"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/common/database"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/common/kafka"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/metadata"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/store"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/domain/zone"
	zoneEvents "github.com/Kilat-Pet-Delivery/service-zone/internal/events"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/gateway/zoneservice"
	"github.com/Kilat-Pet-Delivery/service-zone/internal/repository"
	"github.com/Kilat-Pet-Delivery/service-zone/migrations"
)

// testInfra holds shared test infrastructure.
type testInfra struct {
	DB           *gorm.DB
	KafkaBrokers []string
	Cleanup      func()
}

// zoneStack holds wired-up zone import components.
type zoneStack struct {
	Repo            *repository.GormDraftRepository
	Catalog         *application.StoreCatalog
	Imports         *application.ImportService
	Staging         *application.StagingService
	Consumer        *zoneEvents.StoreEventConsumer
	Upstream        *fakeZoneService
	CleanupProducer func()
}

// setupContainers starts PostgreSQL and Kafka testcontainers, applies the
// embedded migrations and returns a connected GORM DB.
func setupContainers(t *testing.T) *testInfra {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	pgReq := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "test_zone",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: pgReq,
		Started:          true,
	})
	require.NoError(t, err, "failed to start PostgreSQL container")

	pgHost, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	pgPort, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dbConfig := database.PostgresConfig{
		Host:     pgHost,
		Port:     pgPort.Port(),
		User:     "test",
		Password: "test",
		DBName:   "test_zone",
		SSLMode:  "disable",
	}

	// Poll until the database accepts connections.
	var db *gorm.DB
	require.Eventually(t, func() bool {
		var err error
		db, err = database.Connect(dbConfig, logger)
		return err == nil
	}, 30*time.Second, 1*time.Second, "PostgreSQL not ready for connections")

	require.NoError(t, database.RunMigrations(dbConfig.DatabaseURL(), migrations.FS, ".", logger))

	// Start Kafka container using confluent-local (supports KRaft natively).
	kafkaContainer, err := kafkamodule.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err, "failed to start Kafka container")

	kafkaBrokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err, "failed to get Kafka brokers")

	createTopics(t, kafkaBrokers, application.TopicZoneEvents, application.TopicStoreEvents)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate PostgreSQL container: %v", err)
		}
	}

	return &testInfra{
		DB:           db,
		KafkaBrokers: kafkaBrokers,
		Cleanup:      cleanup,
	}
}

// setupZoneStack wires the import pipeline against Postgres, Kafka and an
// in-process zone service.
func setupZoneStack(t *testing.T, db *gorm.DB, brokers []string) *zoneStack {
	t.Helper()
	logger, _ := zap.NewDevelopment()

	upstream := newFakeZoneService()
	server := httptest.NewServer(upstream)
	t.Cleanup(server.Close)

	client := zoneservice.NewClient(zoneservice.Config{BaseURL: server.URL, Timeout: 5 * time.Second, RetryCount: 1}, logger)
	repo := repository.NewGormDraftRepository(db)
	producer := kafka.NewProducer(brokers, logger)
	catalog := application.NewStoreCatalog(client, nil, logger)
	canon := metadata.NewCanonicalizer(metadata.DefaultSynonyms())

	groupID := fmt.Sprintf("test-zone-%s", uuid.New().String()[:8])

	return &zoneStack{
		Repo:            repo,
		Catalog:         catalog,
		Imports:         application.NewImportService(repo, catalog, canon, producer, logger),
		Staging:         application.NewStagingService(repo, client, catalog, producer, logger),
		Consumer:        zoneEvents.NewStoreEventConsumer(brokers, groupID, catalog, logger),
		Upstream:        upstream,
		CleanupProducer: func() { _ = producer.Close() },
	}
}

// fakeZoneService serves the zone service API from memory.
type fakeZoneService struct {
	mu      sync.Mutex
	stores  []store.Entry
	created []zone.CreateInput
	reject  map[string]bool
}

func newFakeZoneService() *fakeZoneService {
	return &fakeZoneService{
		stores: []store.Entry{{ID: "store-1", DisplayName: "Downtown Kitchen"}},
		reject: map[string]bool{},
	}
}

func (f *fakeZoneService) addStore(e store.Entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stores = append(f.stores, e)
}

func (f *fakeZoneService) createdNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, len(f.created))
	for i, c := range f.created {
		names[i] = c.ZoneName
	}
	return names
}

func (f *fakeZoneService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	write := func(status int, data interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/v1/stores":
		write(http.StatusOK, f.stores)
	case r.Method == http.MethodPost && r.URL.Path == "/api/v1/zones":
		var in zone.CreateInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if f.reject[in.ZoneName] {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"error":{"message":"polygon self-intersects"}}`))
			return
		}
		f.created = append(f.created, in)
		write(http.StatusCreated, zone.Zone{
			ID:          fmt.Sprintf("zone-%d", len(f.created)),
			StoreID:     in.StoreID,
			ZoneName:    in.ZoneName,
			Coordinates: in.Coordinates,
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// countingDirectory is a static store directory that counts listings.
type countingDirectory struct {
	mu      sync.Mutex
	entries []store.Entry
	calls   int
}

func (d *countingDirectory) ListStores(context.Context) ([]store.Entry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.entries, nil
}

// setupValkey starts a Valkey container and returns its address.
func setupValkey(t *testing.T) (string, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "valkey/valkey:8-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start Valkey container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Valkey container: %v", err)
		}
	}
	return net.JoinHostPort(host, port.Port()), cleanup
}

// publishTestEvent publishes a CloudEvent to Kafka.
func publishTestEvent(t *testing.T, brokers []string, topic, source, eventType string, data interface{}) {
	t.Helper()
	logger, _ := zap.NewDevelopment()
	producer := kafka.NewProducer(brokers, logger)
	defer func() { _ = producer.Close() }()

	ce, err := kafka.NewCloudEvent(source, eventType, data)
	require.NoError(t, err, "failed to create cloud event")

	err = producer.PublishEvent(context.Background(), topic, ce)
	require.NoError(t, err, "failed to publish event")
}

// consumeOneEvent reads from a Kafka topic until it finds an event of the expected type.
func consumeOneEvent(t *testing.T, brokers []string, topic, expectedType string, timeout time.Duration) kafka.CloudEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	groupID := fmt.Sprintf("test-assert-%s", uuid.New().String()[:8])
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     brokers,
		GroupID:     groupID,
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafkago.FirstOffset,
	})
	defer func() { _ = reader.Close() }()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				t.Fatalf("timed out waiting for event type %q on topic %q", expectedType, topic)
			}
			continue
		}
		ce, err := kafka.ParseCloudEvent(msg.Value)
		if err != nil {
			continue
		}
		if ce.Type == expectedType {
			return ce
		}
	}
}

// createTopics pre-creates Kafka topics so producers don't fail with "Unknown Topic".
func createTopics(t *testing.T, brokers []string, topics ...string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", brokers[0])
	require.NoError(t, err, "failed to dial Kafka for topic creation")
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err, "failed to get Kafka controller")

	controllerConn, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	require.NoError(t, err, "failed to connect to Kafka controller")
	defer controllerConn.Close()

	topicConfigs := make([]kafkago.TopicConfig, len(topics))
	for i, topic := range topics {
		topicConfigs[i] = kafkago.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		}
	}
	err = controllerConn.CreateTopics(topicConfigs...)
	require.NoError(t, err, "failed to create Kafka topics")

	// Give Kafka a moment to propagate topic metadata.
	time.Sleep(1 * time.Second)
}
