// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package taskqueue

// Kind names one queued session operation.
type Kind string

const (
	KindCreate               Kind = "create"
	KindJoin                 Kind = "join"
	KindMigrate              Kind = "migrate"
	KindUpdate               Kind = "update"
	KindDelete               Kind = "delete"
	KindSessionStart         Kind = "session_start"
	KindSessionEnd           Kind = "session_end"
	KindQuery                Kind = "query"
	KindEnsureBestHost       Kind = "ensure_best_host"
	KindSetLocalUserData     Kind = "set_local_user_data"
	KindTerminateHostHinting Kind = "terminate_host_hinting"
	KindDedicatedSetup       Kind = "dedicated_setup"
)

// Policy controls how the queue treats a kind on timeout and cancel.
type Policy struct {
	// RestartOnTimeout restarts the task in place when the service reports a timeout.
	RestartOnTimeout bool
	// MaxRestarts bounds timeout restarts; zero means unbounded.
	MaxRestarts int
	// Vital tasks are never dropped while in flight; cancelling one defers
	// teardown until its completion arrives.
	Vital bool
	// NeedsHandle tasks are purged when the session handle becomes invalid.
	NeedsHandle bool
}

var policies = map[Kind]Policy{
	KindCreate:               {RestartOnTimeout: true, MaxRestarts: 3, Vital: true},
	KindJoin:                 {RestartOnTimeout: true, MaxRestarts: 3, Vital: true},
	KindDelete:               {RestartOnTimeout: true, Vital: true, NeedsHandle: true},
	KindMigrate:              {RestartOnTimeout: true, NeedsHandle: true},
	KindUpdate:               {RestartOnTimeout: true, NeedsHandle: true},
	KindSessionStart:         {RestartOnTimeout: true, NeedsHandle: true},
	KindSessionEnd:           {RestartOnTimeout: true, NeedsHandle: true},
	KindQuery:                {NeedsHandle: true},
	KindEnsureBestHost:       {NeedsHandle: true},
	KindSetLocalUserData:     {RestartOnTimeout: true, NeedsHandle: true},
	KindTerminateHostHinting: {NeedsHandle: true},
	KindDedicatedSetup:       {RestartOnTimeout: true, MaxRestarts: 2, NeedsHandle: true},
}

// PolicyFor returns the policy for k. Unknown kinds get the zero policy.
func PolicyFor(k Kind) Policy { return policies[k] }
