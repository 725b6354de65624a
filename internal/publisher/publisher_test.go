package publisher_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eurodeo/esoh/internal/publisher"
)

type recorder struct {
	topics []string
	err    error
	closed bool
}

func (r *recorder) Publish(_ context.Context, topic string, _ []byte) error {
	r.topics = append(r.topics, topic)
	return r.err
}

func (r *recorder) Close() error {
	r.closed = true
	return nil
}

func TestNew_None(t *testing.T) {
	for _, driver := range []string{"", "none", "NONE"} {
		p, err := publisher.New(context.Background(), publisher.Config{Driver: driver, Logger: zerolog.Nop()})
		require.NoError(t, err)
		assert.True(t, publisher.IsNop(p))
		assert.NoError(t, p.Publish(context.Background(), "a/b", []byte("{}")))
		assert.NoError(t, p.Close())
	}
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := publisher.New(context.Background(), publisher.Config{Driver: "carrier-pigeon", Logger: zerolog.Nop()})
	assert.ErrorIs(t, err, publisher.ErrUnknownDriver)
}

func TestNew_MissingDriverConfig(t *testing.T) {
	for _, driver := range []string{publisher.DriverMQTT, publisher.DriverGCP, publisher.DriverKafka, publisher.DriverNATS} {
		t.Run(driver, func(t *testing.T) {
			_, err := publisher.New(context.Background(), publisher.Config{Driver: driver, Logger: zerolog.Nop()})
			require.Error(t, err)
			assert.Contains(t, err.Error(), driver)
		})
	}
}

func TestIsNop(t *testing.T) {
	assert.True(t, publisher.IsNop(nil))
	assert.True(t, publisher.IsNop(publisher.Nop{}))
	assert.False(t, publisher.IsNop(&recorder{}))
}

func TestInstrument(t *testing.T) {
	rec := &recorder{}
	p := publisher.Instrument("test-ok", rec)

	require.NoError(t, p.Publish(context.Background(), "esoh/nl.knmi", []byte("{}")))
	assert.Equal(t, []string{"esoh/nl.knmi"}, rec.topics)

	rec.err = errors.New("broker down")
	err := p.Publish(context.Background(), "esoh/nl.knmi", []byte("{}"))
	assert.EqualError(t, err, "broker down")

	require.NoError(t, p.Close())
	assert.True(t, rec.closed)
}
