package domain

type RoutePath string

const (
	RouteBroadcast     RoutePath = "broadcast"
	RouteLocalSpeaker  RoutePath = "local-speaker"
	RouteDirectBackend RoutePath = "direct-backend"
	RouteNone          RoutePath = "none"
)

// RoutingDecision describes where an utterance went. Attempted is the
// branch that was tried; it equals Path unless delivery failed.
type RoutingDecision struct {
	Path      RoutePath
	Attempted RoutePath
	Err       error
}

func (d RoutingDecision) Delivered() bool {
	return d.Path != RouteNone
}

func (d RoutingDecision) Reason() string {
	if d.Err == nil {
		return ""
	}
	return d.Err.Error()
}
