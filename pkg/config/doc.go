// Package config loads vtyctl settings and desired state.
//
// # Desired state
//
// Desired resources can be written in three formats, all producing the same
// ResourceConfig values:
//
//   - CUE files or packages (CUEParser). The generated kind definitions such
//     as #bgp_router are in scope.
//   - YAML files (YAMLLoader).
//   - Starlark scripts (StarlarkEvaluator), where every kind is a builtin.
//
// Each resource is validated twice: with go-playground/validator struct
// tags, then against the closed CUE definition generated from the schema
// registry, which rejects unknown properties and out-of-range values with a
// file position. ParsedConfig.ToDesired finally coerces properties into
// typed values and returns sparse desired instances for one target.
//
// Example CUE file:
//
//	resources: {
//		edge: #bgp_router & {
//			name: "65000"
//			properties: {
//				router_id:    "10.0.0.1"
//				redistribute: ["connected"]
//			}
//		}
//		v6: {
//			kind:   "bgp_address_family"
//			name:   "ipv6_unicast"
//			parent: "65000"
//			properties: networks: ["2001:db8::/32"]
//		}
//		old_route: {
//			kind:   "static_route"
//			name:   "10.9.0.0/16"
//			ensure: "absent"
//		}
//	}
//
// # Settings
//
// Settings come from a TOML file (vtyctl.toml) decoded with BurntSushi/toml
// over DefaultSettings. The telemetry sections ([logging], [tracing],
// [metrics]) map onto telemetry.Config; [store], [policy], [apply] and
// [[targets]] configure the journal, the policy guard, multi-target runs and
// the daemons to manage.
package config
