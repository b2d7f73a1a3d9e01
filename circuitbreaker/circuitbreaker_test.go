package circuitbreaker_test

import (
	"context"
	goerrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slok/writeharness"
	"github.com/slok/writeharness/circuitbreaker"
	"github.com/slok/writeharness/errors"
)

var wantedErr = goerrors.New("wanted error")

// switchStore fails the writes while fail is set.
type switchStore struct {
	writeharness.NopStore
	fail  bool
	calls int
}

func (s *switchStore) Put(context.Context, writeharness.WritePolicy, writeharness.Key, writeharness.Bin) error {
	s.calls++
	if s.fail {
		return wantedErr
	}
	return nil
}

func put(s writeharness.Store) error {
	return s.Put(context.TODO(), writeharness.WritePolicy{}, writeharness.Key{Seq: 1}, writeharness.Bin{})
}

func TestCircuitBreaker(t *testing.T) {
	tests := []struct {
		name     string
		cfg      circuitbreaker.Config
		f        func(cb writeharness.Store, st *switchStore) // Receives the circuit to set the state in the way we want.
		expErr   error
		expCode  errors.ResultCode
		expCalls int
	}{
		{
			name:     "The circuit should start in closed state.",
			cfg:      circuitbreaker.Config{MaxErrorRate: 5},
			f:        func(writeharness.Store, *switchStore) {},
			expCalls: 1,
		},
		{
			name: "Errors under the max error rate should not open the circuit.",
			cfg:  circuitbreaker.Config{MaxErrorRate: 5},
			f: func(cb writeharness.Store, st *switchStore) {
				st.fail = true
				for i := 0; i < 5; i++ {
					_ = put(cb)
				}
			},
			expErr:   wantedErr,
			expCalls: 6,
		},
		{
			name: "Errors over the max error rate should open the circuit and reject without calling the store.",
			cfg:  circuitbreaker.Config{MaxErrorRate: 5},
			f: func(cb writeharness.Store, st *switchStore) {
				st.fail = true
				for i := 0; i < 6; i++ {
					_ = put(cb)
				}
				st.fail = false
			},
			expErr:   nil,
			expCode:  errors.ResultMaxErrorRate,
			expCalls: 6,
		},
		{
			name: "A disabled circuit should never open.",
			cfg:  circuitbreaker.Config{MaxErrorRate: 0},
			f: func(cb writeharness.Store, st *switchStore) {
				st.fail = true
				for i := 0; i < 100; i++ {
					_ = put(cb)
				}
				st.fail = false
			},
			expCalls: 101,
		},
		{
			name: "The circuit should close when the window slides.",
			cfg: circuitbreaker.Config{
				MaxErrorRate: 5,
				TendInterval: 10 * time.Millisecond,
			},
			f: func(cb writeharness.Store, st *switchStore) {
				st.fail = true
				for i := 0; i < 6; i++ {
					_ = put(cb)
				}
				st.fail = false

				// Wait until the window forgets the errors.
				time.Sleep(15 * time.Millisecond)
			},
			expCalls: 7,
		},
		{
			name: "A window with multiple buckets should remember the errors of the previous buckets.",
			cfg: circuitbreaker.Config{
				MaxErrorRate:    5,
				ErrorRateWindow: 50,
				TendInterval:    10 * time.Millisecond,
			},
			f: func(cb writeharness.Store, st *switchStore) {
				st.fail = true
				for i := 0; i < 6; i++ {
					_ = put(cb)
				}
				st.fail = false

				time.Sleep(15 * time.Millisecond)
			},
			expCode:  errors.ResultMaxErrorRate,
			expCalls: 6,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert := assert.New(t)

			st := &switchStore{}
			cb := writeharness.StoreChain(st, circuitbreaker.NewMiddleware(test.cfg))
			test.f(cb, st)

			err := put(cb)
			if test.expCode != errors.ResultOK {
				code, ok := errors.ResultCodeOf(err)
				assert.True(ok)
				assert.Equal(test.expCode, code)
			} else if test.expErr != nil {
				assert.ErrorIs(err, test.expErr)
			} else {
				assert.NoError(err)
			}
			assert.Equal(test.expCalls, st.calls)
		})
	}
}
