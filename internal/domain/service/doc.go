// Package service provides the service registry shared by all bundles.
//
// Bundles publish objects under one or more interface names and look them up
// again by name and an optional LDAP-style property filter. Registrations of
// the same interface are kept in a total order: higher service.ranking first,
// then lower service.id (the older registration wins ties).
//
// Components:
//   - Registry: published services, use counts and listeners
//   - Registration: the publisher's handle, used to modify or withdraw a service
//   - Reference: the consumer's handle, passed to GetService/UngetService
//   - Filter: RFC 1960 filter expressions such as (&(lang=en)(service.ranking>=10))
//   - Factory: produces one service object per consuming context
//
// Interface names are bound to Go interface types with Declare, so
// registration can check that the object really implements what it claims.
// The generic helpers Register, Get and NameOf do this implicitly:
//
//	reg, err := service.Register[Greeter](registry, ctx, &englishGreeter{}, nil)
//	greeter, ref, err := service.Get[Greeter](registry, ctx)
//	defer registry.UngetService(ctx, ref)
//
// Locking: one lock guards the published services and the id counter, a
// second lock guards listeners. Events are delivered outside both locks, so
// listeners may call back into the registry.
package service
