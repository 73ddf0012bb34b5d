package delayq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plainPayload struct {
	Value string `json:"value"`
}

type singletonPayload struct {
	Class string `json:"class"`
}

func (p singletonPayload) SingletonQueueName() (string, bool) {
	if p.Class == "" {
		return "", false
	}
	return "report:" + p.Class, true
}

func TestPrepareInsertDefaultsPriorityAndRunAt(t *testing.T) {
	clock := NewUTCClock()
	pi, err := prepareInsert(clock, JSONSerializer{}, plainPayload{Value: "x"}, Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, pi.Priority)
	assert.WithinDuration(t, clock.Now(), pi.RunAt, time.Second)
	assert.False(t, pi.Singleton.Valid)
}

func TestPrepareInsertHonorsExplicitRunAtAndPriority(t *testing.T) {
	runAt := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	pi, err := prepareInsert(NewUTCClock(), JSONSerializer{}, plainPayload{Value: "x"}, Options{
		Priority: 7,
		RunAt:    runAt,
	})
	require.NoError(t, err)

	assert.Equal(t, 7, pi.Priority)
	assert.True(t, pi.RunAt.Equal(runAt))
}

func TestPrepareInsertSingletonNamerOverridesOptions(t *testing.T) {
	pi, err := prepareInsert(NewUTCClock(), JSONSerializer{}, singletonPayload{Class: "daily"}, Options{
		Singleton: "explicit-name",
	})
	require.NoError(t, err)

	require.True(t, pi.Singleton.Valid)
	assert.Equal(t, "report:daily", pi.Singleton.String)
}

func TestPrepareInsertSingletonNamerDecliningFallsBackToOptions(t *testing.T) {
	pi, err := prepareInsert(NewUTCClock(), JSONSerializer{}, singletonPayload{Class: ""}, Options{
		Singleton: "explicit-name",
	})
	require.NoError(t, err)

	require.True(t, pi.Singleton.Valid)
	assert.Equal(t, "explicit-name", pi.Singleton.String)
}

func TestPrepareInsertUsesExplicitHandlerOverMarshal(t *testing.T) {
	pi, err := prepareInsert(NewUTCClock(), JSONSerializer{}, plainPayload{Value: "ignored"}, Options{
		Handler: []byte(`{"value":"explicit"}`),
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{"value":"explicit"}`, string(pi.Handler))
}

func TestPrepareInsertMarshalsPayloadWhenNoExplicitHandler(t *testing.T) {
	pi, err := prepareInsert(NewUTCClock(), JSONSerializer{}, plainPayload{Value: "x"}, Options{})
	require.NoError(t, err)

	assert.JSONEq(t, `{"value":"x"}`, string(pi.Handler))
}

func TestJSONSerializerRoundTrip(t *testing.T) {
	s := JSONSerializer{}
	data, err := s.Marshal(map[string]any{"a": 1})
	require.NoError(t, err)

	decoded, err := s.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, float64(1), decoded.(map[string]any)["a"])
}

func TestJSONSerializerUnmarshalErrorIsDeserializationError(t *testing.T) {
	s := JSONSerializer{}
	_, err := s.Unmarshal([]byte("not json"))
	require.Error(t, err)

	var deserErr *DeserializationError
	assert.ErrorAs(t, err, &deserErr)
}
