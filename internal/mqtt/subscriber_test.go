package mqtt

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"testing"
	"time"

	"bikeshare-monitor/internal/config"
	"bikeshare-monitor/pkg/messages"
)

func testConfig() config.Config {
	return config.Config{
		MQTTBroker:           "127.0.0.1",
		MQTTPort:             1,
		MQTTClientID:         "test-monitor",
		MQTTRidesTopic:       "bikeshare/rides/hourly",
		MQTTPredictionsTopic: "bikeshare/predictions/hourly",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestValidateRideCount(t *testing.T) {
	hour := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		msg     messages.RideCount
		wantErr bool
	}{
		{"valid", messages.RideCount{StationID: "5905.14", Hour: hour, Rides: intPtr(3)}, false},
		{"zero rides", messages.RideCount{StationID: "5905.14", Hour: hour, Rides: intPtr(0)}, false},
		{"missing station", messages.RideCount{Hour: hour, Rides: intPtr(3)}, true},
		{"non-ascii station", messages.RideCount{StationID: "Straße-7", Hour: hour, Rides: intPtr(3)}, false},
		{"control char in station", messages.RideCount{StationID: "S\n1", Hour: hour, Rides: intPtr(3)}, true},
		{"station too long", messages.RideCount{StationID: strings.Repeat("x", messages.MaxStationIDLength+1), Hour: hour, Rides: intPtr(3)}, true},
		{"missing hour", messages.RideCount{StationID: "1", Rides: intPtr(3)}, true},
		{"missing rides", messages.RideCount{StationID: "1", Hour: hour}, true},
		{"negative rides", messages.RideCount{StationID: "1", Hour: hour, Rides: intPtr(-1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRideCount(tt.msg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateRideCount() err = %v; wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePrediction(t *testing.T) {
	hour := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		msg     messages.Prediction
		wantErr bool
	}{
		{"valid", messages.Prediction{StationID: "1", Hour: hour, PredictedDemand: floatPtr(2.5)}, false},
		{"missing station", messages.Prediction{Hour: hour, PredictedDemand: floatPtr(1)}, true},
		{"non-ascii station", messages.Prediction{StationID: "Straße-7", Hour: hour, PredictedDemand: floatPtr(1)}, false},
		{"station too long", messages.Prediction{StationID: strings.Repeat("x", messages.MaxStationIDLength+1), Hour: hour, PredictedDemand: floatPtr(1)}, true},
		{"missing hour", messages.Prediction{StationID: "1", PredictedDemand: floatPtr(1)}, true},
		{"missing demand", messages.Prediction{StationID: "1", Hour: hour}, true},
		{"negative demand", messages.Prediction{StationID: "1", Hour: hour, PredictedDemand: floatPtr(-0.1)}, true},
		{"nan demand", messages.Prediction{StationID: "1", Hour: hour, PredictedDemand: floatPtr(math.NaN())}, true},
		{"inf demand", messages.Prediction{StationID: "1", Hour: hour, PredictedDemand: floatPtr(math.Inf(1))}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePrediction(tt.msg)
			if (err != nil) != tt.wantErr {
				t.Errorf("validatePrediction() err = %v; wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestHandleMessage_DispatchesByTopic(t *testing.T) {
	cfg := testConfig()
	s := NewSubscriber(cfg, discardLogger())

	var gotRide *messages.RideCount
	var gotPred *messages.Prediction
	s.SetRidesHandler(func(_ context.Context, msg messages.RideCount) error {
		gotRide = &msg
		return nil
	})
	s.SetPredictionsHandler(func(_ context.Context, msg messages.Prediction) error {
		gotPred = &msg
		return nil
	})

	ctx := context.Background()
	s.handleMessage(ctx, cfg.MQTTRidesTopic, []byte(`{"station_id":"5905.14","hour":"2025-01-01T08:42:00+02:00","rides":4}`))
	s.handleMessage(ctx, cfg.MQTTPredictionsTopic, []byte(`{"station_id":"5905.14","hour":"2025-01-01T06:00:00Z","predicted_demand":3.5,"model_version":"v7"}`))

	wantHour := time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC)
	if gotRide == nil {
		t.Fatal("rides handler not called")
	}
	if gotRide.StationID != "5905.14" || *gotRide.Rides != 4 || !gotRide.Hour.Equal(wantHour) {
		t.Errorf("ride = %+v; want station 5905.14, 4 rides at %v", *gotRide, wantHour)
	}
	if gotRide.Hour.Location() != time.UTC {
		t.Errorf("ride hour location = %v; want UTC", gotRide.Hour.Location())
	}
	if gotPred == nil {
		t.Fatal("predictions handler not called")
	}
	if *gotPred.PredictedDemand != 3.5 || gotPred.ModelVersion != "v7" || !gotPred.Hour.Equal(wantHour) {
		t.Errorf("prediction = %+v", *gotPred)
	}
}

func TestHandleMessage_RejectsInvalid(t *testing.T) {
	cfg := testConfig()
	s := NewSubscriber(cfg, discardLogger())

	calls := 0
	s.SetRidesHandler(func(_ context.Context, _ messages.RideCount) error {
		calls++
		return nil
	})

	ctx := context.Background()
	for _, payload := range []string{
		`not json`,
		`{"station_id":"","hour":"2025-01-01T08:00:00Z","rides":1}`,
		`{"station_id":"1","hour":"2025-01-01T08:00:00Z","rides":-2}`,
		`{"station_id":"1","hour":"2025-01-01T08:00:00Z"}`,
	} {
		s.handleMessage(ctx, cfg.MQTTRidesTopic, []byte(payload))
	}
	s.handleMessage(ctx, "some/other/topic", []byte(`{"station_id":"1","hour":"2025-01-01T08:00:00Z","rides":1}`))

	if calls != 0 {
		t.Errorf("handler called %d times; want 0", calls)
	}
}

func TestHandleRideCount_HandlerError(t *testing.T) {
	cfg := testConfig()
	s := NewSubscriber(cfg, discardLogger())
	boom := errors.New("disk full")
	s.SetRidesHandler(func(_ context.Context, _ messages.RideCount) error { return boom })

	err := s.handleRideCount(context.Background(), []byte(`{"station_id":"1","hour":"2025-01-01T08:00:00Z","rides":1}`))
	if !errors.Is(err, boom) {
		t.Errorf("handleRideCount() err = %v; want wrapping %v", err, boom)
	}
}

func TestHandleMessage_NoHandlerIsNoop(t *testing.T) {
	cfg := testConfig()
	s := NewSubscriber(cfg, discardLogger())

	if err := s.handlePrediction(context.Background(), []byte(`{"station_id":"1","hour":"2025-01-01T08:00:00Z","predicted_demand":1}`)); err != nil {
		t.Errorf("handlePrediction() without handler err = %v; want nil", err)
	}
}

func TestSubscriber_ConnectHonoursContext(t *testing.T) {
	s := NewSubscriber(testConfig(), discardLogger())
	defer s.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	err := s.Connect(ctx)
	if err == nil {
		t.Fatal("Connect() to unreachable broker succeeded")
	}
	if s.IsConnected() {
		t.Error("IsConnected() = true after failed connect")
	}
}

func TestSubscriber_ConnectAfterDisconnect(t *testing.T) {
	s := NewSubscriber(testConfig(), discardLogger())
	s.Disconnect()
	s.Disconnect()

	if err := s.Connect(context.Background()); !errors.Is(err, errStopped) {
		t.Errorf("Connect() after Disconnect err = %v; want %v", err, errStopped)
	}
}

func TestPublisher_RequiresConnection(t *testing.T) {
	p := NewPublisher(testConfig(), discardLogger())
	defer p.Disconnect()

	hour := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	if err := p.PublishRideCount(messages.RideCount{StationID: "1", Hour: hour, Rides: intPtr(1)}); err == nil {
		t.Error("PublishRideCount() while disconnected succeeded")
	}
	if err := p.PublishPrediction(messages.Prediction{StationID: "1", Hour: hour}); err == nil {
		t.Error("PublishPrediction() with missing demand succeeded")
	}
}

func TestBrokerURL(t *testing.T) {
	if got := brokerURL(testConfig()); got != "tcp://127.0.0.1:1" {
		t.Errorf("brokerURL() = %q; want tcp://127.0.0.1:1", got)
	}
}
