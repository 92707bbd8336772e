package cerrors

import "fmt"

type Generic struct {
	Phase  string
	Reason string
}

func (e Generic) Error() string {
	if e.Phase == "" {
		return e.Reason
	}
	return fmt.Sprintf("[%s]: %s", e.Phase, e.Reason)
}

func (e Generic) UserFriendly() bool {
	return true
}

func (e Generic) ErrorType() ErrorType {
	return ErrorTypeGeneric
}

type StatusChecks struct {
	Target string
	Reason string
}

func (e StatusChecks) Error() string {
	return fmt.Sprintf("workload '%s' status check failed, %s", e.Target, e.Reason)
}

func (e StatusChecks) UserFriendly() bool {
	return true
}

func (e StatusChecks) ErrorType() ErrorType {
	return ErrorTypeStatusChecks
}

type Injection struct {
	Kind   string
	Target string
	Reason string
}

func (e Injection) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("failed to inject '%s', %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("failed to inject '%s' into '%s', %s", e.Kind, e.Target, e.Reason)
}

func (e Injection) UserFriendly() bool {
	return true
}

func (e Injection) ErrorType() ErrorType {
	return ErrorTypeInjection
}

type Restore struct {
	Target string
	Reason string
}

func (e Restore) Error() string {
	return fmt.Sprintf("failed to restore '%s', %s", e.Target, e.Reason)
}

func (e Restore) UserFriendly() bool {
	return true
}

func (e Restore) ErrorType() ErrorType {
	return ErrorTypeRestore
}

type ModelTransport struct {
	Reason string
}

func (e ModelTransport) Error() string {
	return fmt.Sprintf("model request failed, %s", e.Reason)
}

func (e ModelTransport) UserFriendly() bool {
	return true
}

func (e ModelTransport) ErrorType() ErrorType {
	return ErrorTypeModelTransport
}

type ActionExecution struct {
	Reason string
}

func (e ActionExecution) Error() string {
	return fmt.Sprintf("remediation action failed, %s", e.Reason)
}

func (e ActionExecution) UserFriendly() bool {
	return true
}

func (e ActionExecution) ErrorType() ErrorType {
	return ErrorTypeActionExecution
}

type TargetSelection struct {
	Target string
	Reason string
}

func (e TargetSelection) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("target selection failed, %s", e.Reason)
	}
	return fmt.Sprintf("target '%s' selection failed, %s", e.Target, e.Reason)
}

func (e TargetSelection) UserFriendly() bool {
	return true
}

func (e TargetSelection) ErrorType() ErrorType {
	return ErrorTypeTargetSelection
}

type Timeout struct {
	Phase  string
	Reason string
}

func (e Timeout) Error() string {
	if e.Phase == "" {
		return e.Reason
	}
	return fmt.Sprintf("[%s]: %s", e.Phase, e.Reason)
}

func (e Timeout) UserFriendly() bool {
	return true
}

func (e Timeout) ErrorType() ErrorType {
	return ErrorTypeTimeout
}
