package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidWindow, "window offsets out of order")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidWindow, err.Code)
	suite.Equal("window offsets out of order", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeUnknownVariant, "variant %q not found", "twap_10s")
	suite.NotNil(err)
	suite.Equal(ErrCodeUnknownVariant, err.Code)
	suite.Equal(`variant "twap_10s" not found`, err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeQueryFailed, "failed to query ticks", cause)
	suite.NotNil(err)
	suite.Equal(ErrCodeQueryFailed, err.Code)
	suite.Equal("failed to query ticks", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("underlying error")
	err := Wrapf(ErrCodeDataNotFound, cause, "no ticks loaded for symbol %s", "BTCUSDT")
	suite.NotNil(err)
	suite.Equal(ErrCodeDataNotFound, err.Code)
	suite.Equal("no ticks loaded for symbol BTCUSDT", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Equal("[100] invalid parameter", err.Error())
}

func (suite *ErrorTestSuite) TestErrorStringWithCause() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeDataNotFound, "data not found", cause)
	suite.Equal("[202] data not found: underlying error", err.Error())
}

func (suite *ErrorTestSuite) TestUnwrap() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeWriteFailed, "write failed", cause)
	suite.Equal(cause, err.Unwrap())
	suite.True(errors.Is(err, cause))
}

func (suite *ErrorTestSuite) TestGetCode() {
	err := New(ErrCodeSessionNotFound, "no such session")
	suite.Equal(ErrCodeSessionNotFound, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromWrapped() {
	inner := New(ErrCodeFeedDisconnected, "stream closed")
	outer := fmt.Errorf("live pipeline: %w", inner)
	suite.Equal(ErrCodeFeedDisconnected, GetCode(outer))
}

func (suite *ErrorTestSuite) TestGetCodeUnknown() {
	suite.Equal(ErrCodeUnknown, GetCode(errors.New("plain error")))
	suite.Equal(ErrCodeUnknown, GetCode(nil))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := New(ErrCodeRetriesExhausted, "gave up")
	suite.True(HasCode(err, ErrCodeRetriesExhausted))
	suite.False(HasCode(err, ErrCodeWriteFailed))
}

func (suite *ErrorTestSuite) TestIsConfiguration() {
	suite.True(IsConfiguration(New(ErrCodeInvalidWindow, "bad window")))
	suite.True(IsConfiguration(New(ErrCodeSchemaVersion, "too new")))
	suite.False(IsConfiguration(New(ErrCodeQueryFailed, "query failed")))
	suite.False(IsConfiguration(errors.New("plain error")))
}
