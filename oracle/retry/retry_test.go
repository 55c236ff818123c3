package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	errorsmod "cosmossdk.io/errors"
	"github.com/stretchr/testify/suite"

	"github.com/GPTx-global/rofl-oracle/oracle/types"
)

type RetryTestSuite struct {
	suite.Suite
}

func TestRetryTestSuite(t *testing.T) {
	suite.Run(t, new(RetryTestSuite))
}

func (suite *RetryTestSuite) TestPolicyValidate() {
	suite.NoError(DefaultPolicy().Validate())
	suite.NoError(QueryPolicy().Validate())

	suite.ErrorIs(Policy{BaseDelay: 0, MaxDelay: time.Second}.Validate(), types.ErrInvalidConfig)
	suite.ErrorIs(Policy{BaseDelay: time.Minute, MaxDelay: time.Second}.Validate(), types.ErrInvalidConfig)

	_, err := NewBackoff(Policy{})
	suite.Error(err)
}

func (suite *RetryTestSuite) TestBackoffGrowsAndCaps() {
	b, err := NewBackoff(Policy{BaseDelay: time.Second, MaxDelay: 5 * time.Second})
	suite.Require().NoError(err)

	suite.Equal(time.Second, b.Failure())
	suite.Equal(2*time.Second, b.Failure())
	suite.Equal(4*time.Second, b.Failure())
	suite.Equal(5*time.Second, b.Failure())
	suite.Equal(5*time.Second, b.Failure())
	suite.Equal(5, b.Failures())

	b.Reset()
	suite.Zero(b.Failures())
	suite.Equal(time.Second, b.Failure())
}

func (suite *RetryTestSuite) TestFixedCadence() {
	b, err := NewBackoff(Policy{BaseDelay: 30 * time.Second, MaxDelay: 30 * time.Second})
	suite.Require().NoError(err)

	for i := 0; i < 4; i++ {
		suite.Equal(30*time.Second, b.Failure())
	}
}

func (suite *RetryTestSuite) TestIsRetryable() {
	testCases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"encoding", errorsmod.Wrap(types.ErrEncoding, "too wide"), false},
		{"invalid value", types.ErrInvalidValue, false},
		{"cancelled", context.Canceled, false},
		{"transport", errorsmod.Wrap(types.ErrTransport, "dial"), true},
		{"endpoint", errorsmod.Wrap(types.ErrEndpoint, "500"), true},
		{"response format", types.ErrResponseFormat, true},
		{"deadline", context.DeadlineExceeded, true},
		{"unknown", errors.New("boom"), true},
	}

	for _, tc := range testCases {
		suite.Run(tc.name, func() {
			suite.Equal(tc.retryable, IsRetryable(tc.err))
		})
	}
}

func (suite *RetryTestSuite) TestDo() {
	policy := Policy{BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	calls := 0
	err := Do(context.Background(), policy, 5, func(context.Context) error {
		calls++
		if calls < 3 {
			return types.ErrTransport
		}
		return nil
	})
	suite.NoError(err)
	suite.Equal(3, calls)

	calls = 0
	err = Do(context.Background(), policy, 5, func(context.Context) error {
		calls++
		return types.ErrEncoding
	})
	suite.ErrorIs(err, types.ErrEncoding)
	suite.Equal(1, calls)

	calls = 0
	err = Do(context.Background(), policy, 2, func(context.Context) error {
		calls++
		return types.ErrEndpoint
	})
	suite.ErrorIs(err, types.ErrEndpoint)
	suite.Equal(3, calls)
}

func (suite *RetryTestSuite) TestDo_InvalidPolicy() {
	calls := 0
	fn := func(context.Context) error {
		calls++
		return nil
	}

	suite.NotPanics(func() {
		err := Do(context.Background(), Policy{}, 3, fn)
		suite.ErrorIs(err, types.ErrInvalidConfig)
	})
	suite.Zero(calls)
}

func (suite *RetryTestSuite) TestBackoffResetRestartsSchedule() {
	b, err := NewBackoff(Policy{BaseDelay: time.Second, MaxDelay: time.Minute})
	suite.Require().NoError(err)

	b.Reset()
	suite.Equal(time.Second, b.Failure())
	suite.Equal(2*time.Second, b.Failure())

	b.Reset()
	b.Reset()
	suite.Equal(time.Second, b.Failure())
}
