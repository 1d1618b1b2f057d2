package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sensorhub-server/internal/modules/weather/repository"
	"sensorhub-server/internal/modules/weather/types"
)

var now = time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

type fakeRepo struct {
	inserted  []types.NewReading
	insertErr error
}

func (f *fakeRepo) InsertReading(_ context.Context, r types.NewReading) (int64, error) {
	if f.insertErr != nil {
		return 0, f.insertErr
	}
	f.inserted = append(f.inserted, r)
	return int64(len(f.inserted)), nil
}

func (f *fakeRepo) GetLatestReadings(context.Context, int) ([]types.Reading, error) {
	return nil, nil
}

func (f *fakeRepo) GetReadingsByTimeRange(context.Context, int) ([]types.Reading, error) {
	return nil, nil
}

func (f *fakeRepo) GetStats(context.Context, int) (types.StatsWindow, error) {
	return types.StatsWindow{}, nil
}

func newTestService(repo *fakeRepo) *Service {
	return NewService(repo, nil, WithClock(func() time.Time { return now }))
}

func TestParseSubmission_valid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want types.NewReading
	}{
		{
			name: "english field names",
			body: `{"temperature": 29.5, "humidity": 61.2, "light": 734}`,
			want: types.NewReading{Temperature: 29.5, Humidity: 61.2, LightValue: 734},
		},
		{
			name: "device field names",
			body: `{"suhu": -3, "kelembapan": 0, "cahaya": 12}`,
			want: types.NewReading{Temperature: -3, Humidity: 0, LightValue: 12},
		},
		{
			name: "fractional light rounds",
			body: `{"temperature": 20, "humidity": 50, "light": 99.6}`,
			want: types.NewReading{Temperature: 20, Humidity: 50, LightValue: 100},
		},
		{
			name: "negative light allowed",
			body: `{"temperature": 20, "humidity": 50, "light": -5}`,
			want: types.NewReading{Temperature: 20, Humidity: 50, LightValue: -5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSubmission([]byte(tt.body), now)
			if err != nil {
				t.Fatalf("ParseSubmission() error = %v", err)
			}
			if got.Temperature != tt.want.Temperature || got.Humidity != tt.want.Humidity || got.LightValue != tt.want.LightValue {
				t.Errorf("ParseSubmission() = %+v; want %+v", got, tt.want)
			}
			if got.Timestamp != nil {
				t.Errorf("Timestamp = %v; want nil", got.Timestamp)
			}
		})
	}
}

func TestParseSubmission_rejected(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{name: "not json", body: `temperature=20`, field: "body"},
		{name: "array", body: `[1,2,3]`, field: "body"},
		{name: "null body", body: `null`, field: "body"},
		{name: "missing temperature", body: `{"humidity": 50, "light": 1}`, field: "temperature"},
		{name: "missing light", body: `{"temperature": 20, "humidity": 50}`, field: "light"},
		{name: "string temperature", body: `{"temperature": "20", "humidity": 50, "light": 1}`, field: "temperature"},
		{name: "null humidity", body: `{"temperature": 20, "humidity": null, "light": 1}`, field: "humidity"},
		{name: "boolean light", body: `{"temperature": 20, "humidity": 50, "light": true}`, field: "light"},
		{name: "object humidity", body: `{"temperature": 20, "humidity": {"v": 1}, "light": 1}`, field: "humidity"},
		{name: "huge light", body: `{"temperature": 20, "humidity": 50, "light": 1e12}`, field: "light"},
		{name: "bad timestamp", body: `{"temperature": 20, "humidity": 50, "light": 1, "timestamp": "yesterday"}`, field: "timestamp"},
		{name: "numeric timestamp", body: `{"temperature": 20, "humidity": 50, "light": 1, "timestamp": 1700000000}`, field: "timestamp"},
		{name: "future timestamp", body: `{"temperature": 20, "humidity": 50, "light": 1, "timestamp": "2025-02-01T12:05:00Z"}`, field: "timestamp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSubmission([]byte(tt.body), now)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("ParseSubmission() error = %v; want *ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Field = %q; want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestParseSubmission_lightBounds(t *testing.T) {
	now := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)

	for _, light := range []string{"2147483647", "-2147483648"} {
		body := `{"temperature": 20, "humidity": 50, "light": ` + light + `}`
		if _, err := ParseSubmission([]byte(body), now); err != nil {
			t.Errorf("light %s: ParseSubmission() error = %v; want nil", light, err)
		}
	}

	for _, light := range []string{"2147483648", "-2147483649"} {
		body := `{"temperature": 20, "humidity": 50, "light": ` + light + `}`
		_, err := ParseSubmission([]byte(body), now)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("light %s: error = %v; want *ValidationError", light, err)
		}
		if got, want := ve.Error(), "light: must fit a 32-bit integer"; got != want {
			t.Errorf("light %s: error = %q; want %q", light, got, want)
		}
	}
}

func TestParseSubmission_timestamp(t *testing.T) {
	body := `{"temperature": 20, "humidity": 50, "light": 1, "timestamp": "2025-02-01T18:30:00+07:00"}`
	got, err := ParseSubmission([]byte(body), now)
	if err != nil {
		t.Fatalf("ParseSubmission() error = %v", err)
	}
	want := time.Date(2025, 2, 1, 11, 30, 0, 0, time.UTC)
	if got.Timestamp == nil || !got.Timestamp.Equal(want) {
		t.Fatalf("Timestamp = %v; want %v", got.Timestamp, want)
	}

	// Within the allowed clock skew.
	body = `{"temperature": 20, "humidity": 50, "light": 1, "timestamp": "2025-02-01T12:00:30Z"}`
	if _, err := ParseSubmission([]byte(body), now); err != nil {
		t.Errorf("timestamp 30s ahead rejected: %v", err)
	}
}

func TestValidate_ranges(t *testing.T) {
	tests := []struct {
		name    string
		in      types.NewReading
		wantErr string
	}{
		{name: "lower bounds", in: types.NewReading{Temperature: -50, Humidity: 0}},
		{name: "upper bounds", in: types.NewReading{Temperature: 70, Humidity: 100}},
		{name: "too cold", in: types.NewReading{Temperature: -51, Humidity: 50}, wantErr: "temperature"},
		{name: "too hot", in: types.NewReading{Temperature: 71, Humidity: 50}, wantErr: "temperature"},
		{name: "humidity negative", in: types.NewReading{Temperature: 20, Humidity: -1}, wantErr: "humidity"},
		{name: "humidity over 100", in: types.NewReading{Temperature: 20, Humidity: 101}, wantErr: "humidity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.in)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v; want nil", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) || ve.Field != tt.wantErr {
				t.Fatalf("Validate() = %v; want ValidationError on %s", err, tt.wantErr)
			}
			if !strings.Contains(err.Error(), "must be between") {
				t.Errorf("message = %q", err.Error())
			}
		})
	}
}

func TestSubmit_outOfRangeNeverReachesStorage(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo)

	for _, body := range []string{
		`{"temperature": -51, "humidity": 50, "light": 1}`,
		`{"temperature": 71, "humidity": 50, "light": 1}`,
		`{"temperature": 20, "humidity": -1, "light": 1}`,
		`{"temperature": 20, "humidity": 101, "light": 1}`,
		`{"temperature": "hot", "humidity": 50, "light": 1}`,
	} {
		if _, err := svc.SubmitPayload(context.Background(), SourceHTTP, []byte(body)); !IsValidation(err) {
			t.Errorf("SubmitPayload(%s) error = %v; want validation error", body, err)
		}
	}
	if len(repo.inserted) != 0 {
		t.Errorf("inserted %d readings; want 0", len(repo.inserted))
	}
}

func TestSubmit_storesValidReading(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo)

	id, err := svc.SubmitPayload(context.Background(), SourceMQTT, []byte(`{"suhu": 29.5, "kelembapan": 61.2, "cahaya": 734}`))
	if err != nil {
		t.Fatalf("SubmitPayload() error = %v", err)
	}
	if id != 1 {
		t.Errorf("id = %d; want 1", id)
	}
	if len(repo.inserted) != 1 || repo.inserted[0].LightValue != 734 {
		t.Errorf("inserted = %+v", repo.inserted)
	}
}

func TestSubmit_storageErrorPropagates(t *testing.T) {
	storageErr := &repository.StorageError{Op: "insert reading", Err: errors.New("disk full")}
	svc := newTestService(&fakeRepo{insertErr: storageErr})

	_, err := svc.Submit(context.Background(), SourceHTTP, types.NewReading{Temperature: 20, Humidity: 50})
	var se *repository.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("Submit() error = %v; want *repository.StorageError", err)
	}
	if IsValidation(err) {
		t.Error("storage error classified as validation")
	}
}
