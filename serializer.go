package delayq

import "encoding/json"

// JSONSerializer is the default Serializer: it encodes any payload with
// encoding/json and decodes it back into a plain map. Callers whose payload
// types need to satisfy SingletonQueueNamer or Performer after a round trip
// should supply their own Serializer that decodes into a concrete type.
type JSONSerializer struct{}

func (JSONSerializer) Marshal(payload any) ([]byte, error) {
	return json.Marshal(payload)
}

func (JSONSerializer) Unmarshal(data []byte) (any, error) {
	var v map[string]any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, &DeserializationError{Err: err}
	}
	return v, nil
}
