package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type stageChanged struct {
	ApplicationID string `json:"application_id"`
	ToStageID     string `json:"to_stage_id"`
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	err := NewLog(log).Publish(context.Background(), ApplicationStageChanged, stageChanged{ApplicationID: "a1", ToStageID: "s2"})
	require.NoError(t, err)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, ApplicationStageChanged, line["event"])
	assert.Contains(t, line["msg"], `"application_id":"a1"`)
}

func TestLogSink_badPayload(t *testing.T) {
	err := NewLog(logrus.New()).Publish(context.Background(), ApplicationCreated, make(chan int))
	assert.Error(t, err)
}

func TestNewRedis_badURL(t *testing.T) {
	_, err := NewRedis("http://not-redis", "events")
	assert.Error(t, err)
}

func TestRedisSink(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)
	url := fmt.Sprintf("redis://%s:%s/0", host, port.Port())

	sink, err := NewRedis(url, "talentpipe.events")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sink.Close() })
	require.NoError(t, sink.Ping(ctx))

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	sub := redis.NewClient(opts).Subscribe(ctx, "talentpipe.events")
	t.Cleanup(func() { _ = sub.Close() })
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, sink.Publish(ctx, ApplicationStageChanged, stageChanged{ApplicationID: "a1", ToStageID: "s2"}))

	select {
	case msg := <-sub.Channel():
		var env Envelope
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &env))
		assert.Equal(t, ApplicationStageChanged, env.Type)
		var p stageChanged
		require.NoError(t, json.Unmarshal(env.Payload, &p))
		assert.Equal(t, "s2", p.ToStageID)
	case <-time.After(10 * time.Second):
		t.Fatal("no message received")
	}
}
