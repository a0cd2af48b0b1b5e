package policy

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		destructiveChangesPolicy(),
		batchSizePolicy(),
		sessionResetPolicy(),
	}
}

// destructiveChangesPolicy blocks removals that cut a router off the
// network unless the operator allowed them.
func destructiveChangesPolicy() Policy {
	return Policy{
		Name:        "destructive-changes",
		Description: "Blocks removing a BGP router or the default route without --allow-destroy",
		Severity:    SeverityError,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"safety"},
		Rego: `package vtyctl.policies.destructive

import rego.v1

default_routes := {"0.0.0.0/0", "0.0.0.0 0.0.0.0"}

deny contains violation if {
	input.resource.kind == "bgp_router"
	input.resource.operation == "delete"
	not input.options.allow_destroy

	violation := {
		"message": sprintf("removing %s drops every BGP session on %s (use --allow-destroy)", [input.resource.id, input.target]),
		"severity": "error",
	}
}

deny contains violation if {
	input.resource.kind == "static_route"
	input.resource.operation == "delete"
	input.resource.key in default_routes
	not input.options.allow_destroy

	violation := {
		"message": sprintf("removing the default route on %s (use --allow-destroy)", [input.target]),
		"severity": "error",
	}
}`,
	}
}

// batchSizePolicy caps the number of commands in one batch.
func batchSizePolicy() Policy {
	return Policy{
		Name:        "batch-size",
		Description: "Limits the number of commands submitted in one vtysh session",
		Severity:    SeverityError,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"safety"},
		Rego: `package vtyctl.policies.batch

import rego.v1

deny contains violation if {
	input.options.max_commands > 0
	n := count(input.resource.commands)
	n > input.options.max_commands

	violation := {
		"message": sprintf("%s needs %d commands, more than the limit of %d", [input.resource.id, n, input.options.max_commands]),
		"severity": "error",
	}
}`,
	}
}

// sessionResetPolicy warns about changes that make bgpd reset its peers.
func sessionResetPolicy() Policy {
	return Policy{
		Name:        "session-reset",
		Description: "Warns about BGP router changes that reset established sessions",
		Severity:    SeverityWarning,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"bgp"},
		Rego: `package vtyctl.policies.sessions

import rego.v1

resetting := {"router_id", "timers", "keepalive", "holdtime"}

deny contains violation if {
	input.resource.kind == "bgp_router"
	input.resource.operation == "update"
	some change in input.resource.changes
	change.property in resetting

	violation := {
		"message": sprintf("changing %s on %s resets BGP sessions", [change.property, input.resource.id]),
		"severity": "warning",
	}
}`,
	}
}
