// Package core defines the shared domain types, collaborator interfaces and
// realtime event model of ScribeMesh.
//
// It has no dependencies on the other scribemesh packages so that every
// component (decision engine, dispatcher, registry, gateway, stores) can
// depend on it without cycles. Collaborators that live outside the core
// (entity/intent extraction, persistence, the ephemeral cache) are consumed
// exclusively through the interfaces declared here.
package core
