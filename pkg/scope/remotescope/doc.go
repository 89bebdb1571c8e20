/*
Package remotescope wires pkg/scope against a remote gRPC collaborator.

It deliberately avoids inventing a project-specific protobuf schema:
Transaction.DoCommit confirms the collaborator is reachable via the
health-checking protocol grpc_health_v1 ships pre-compiled inside
google.golang.org/grpc, then runs a caller-supplied CommitFunc
representing whatever domain RPC a commit actually means for that
collaborator. Source is five independently-pluggable RPC functions rather
than a generated client, since this module has no entities of its own to
define a schema for.
*/
package remotescope
