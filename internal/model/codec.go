package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
)

var (
	ErrUnknownKind  = errors.New("unknown classifier kind")
	ErrNotEncodable = errors.New("classifier cannot be encoded")
	ErrInvalidModel = errors.New("invalid classifier parameters")
)

// Decoder rebuilds a classifier from its encoded parameters.
type Decoder func(params []byte) (Classifier, error)

type envelope struct {
	Kind   string          `json:"kind"`
	Params json.RawMessage `json:"params"`
}

var (
	registryMu sync.RWMutex
	decoders   = map[string]Decoder{
		KindLogisticRegression: func(p []byte) (Classifier, error) {
			m := &LogisticRegression{}
			if err := decodeLinear(p, &m.linear); err != nil {
				return nil, err
			}
			return m, nil
		},
		KindLinearSVC: func(p []byte) (Classifier, error) {
			m := &LinearSVC{}
			if err := decodeLinear(p, &m.linear); err != nil {
				return nil, err
			}
			return m, nil
		},
	}
)

// Register adds a decoder for kind, replacing any existing one.
func Register(kind string, d Decoder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	decoders[kind] = d
}

// Encode serialises a classifier that implements Kinded.
func Encode(c Classifier) ([]byte, error) {
	k, ok := c.(Kinded)
	if !ok {
		return nil, fmt.Errorf("%w: %T has no kind", ErrNotEncodable, c)
	}
	params, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal classifier params: %w", err)
	}
	return json.MarshalIndent(envelope{Kind: k.Kind(), Params: params}, "", "  ")
}

// Decode rebuilds a classifier written by Encode.
func Decode(data []byte) (Classifier, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal classifier: %w", err)
	}

	registryMu.RLock()
	d, ok := decoders[env.Kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Kind)
	}

	return d(env.Params)
}

// KindOf returns the persisted kind of c, or "" if it has none.
func KindOf(c Classifier) string {
	if k, ok := c.(Kinded); ok {
		return k.Kind()
	}
	return ""
}

func decodeLinear(params []byte, l *linear) error {
	if err := json.Unmarshal(params, l); err != nil {
		return fmt.Errorf("unmarshal linear params: %w", err)
	}
	if len(l.Coef) == 0 {
		return fmt.Errorf("%w: no coefficients", ErrInvalidModel)
	}
	for i, w := range l.Coef {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: coefficient %d is %v", ErrInvalidModel, i, w)
		}
	}
	if math.IsNaN(l.Intercept) || math.IsInf(l.Intercept, 0) {
		return fmt.Errorf("%w: intercept is %v", ErrInvalidModel, l.Intercept)
	}
	return nil
}
