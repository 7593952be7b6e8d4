package oracle

import (
	"context"
	"reflect"

	"go.uber.org/mock/gomock"
)

// MockOracle is a hand-written gomock-style mock of the Oracle interface,
// following the same shape `mockgen` would generate, kept by hand since
// this package's surface is small and stable.
type MockOracle struct {
	ctrl     *gomock.Controller
	recorder *MockOracleMockRecorder
}

// MockOracleMockRecorder records expected calls on a MockOracle.
type MockOracleMockRecorder struct {
	mock *MockOracle
}

// NewMockOracle returns a new mock.
func NewMockOracle(ctrl *gomock.Controller) *MockOracle {
	m := &MockOracle{ctrl: ctrl}
	m.recorder = &MockOracleMockRecorder{m}
	return m
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockOracle) EXPECT() *MockOracleMockRecorder {
	return m.recorder
}

// Propose implements Oracle.
func (m *MockOracle) Propose(ctx context.Context, diag Context) (Decision, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Propose", ctx, diag)
	ret0, _ := ret[0].(Decision)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Propose records an expected call.
func (mr *MockOracleMockRecorder) Propose(ctx, diag any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Propose", reflect.TypeOf((*MockOracle)(nil).Propose), ctx, diag)
}
