// Package policy guards vtysh command batches with Open Policy Agent.
//
// Engine implements engine.Guard. Before a resource's batch is submitted,
// every enabled policy is evaluated with an input document of the form
//
//	{
//	  "target": "edge1",
//	  "resource": {
//	    "id": "bgp_router[65000]", "kind": "bgp_router", "key": "65000",
//	    "operation": "update",
//	    "changes": [{"property": "router_id", "kind": "scalar_changed", ...}],
//	    "commands": ["router bgp 65000", "bgp router-id 10.0.0.2"]
//	  },
//	  "options": {"allow_destroy": false, "max_commands": 0, "dry_run": false}
//	}
//
// and contributes the members of the deny set of its package. A member is a
// string or an object with message and optional severity. Violations of
// severity error or critical block the batch; warnings are logged.
//
// # Built-in Policies
//
//   - destructive-changes: removing a BGP router or the default route
//     requires allow_destroy
//   - batch-size: a batch may not exceed max_commands
//   - session-reset: warns when a router change resets BGP sessions
//
// # Custom Policies
//
// Extra policies are loaded from .rego files (named after the file) or from
// .json Policy documents:
//
//	package site.routes
//
//	import rego.v1
//
//	deny contains violation if {
//		input.resource.kind == "static_route"
//		startswith(input.resource.key, "198.18.")
//		violation := {"message": "benchmark range"}
//	}
//
// WatchPolicies reloads them when the files change.
package policy
