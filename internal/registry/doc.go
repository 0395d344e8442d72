// Package registry holds every deployed application.
//
// An Application is the deployed unit of one artifact and is keyed by the
// artifact name. It owns Packages keyed by the package name declared in the
// source, and each Package owns the parsed file models that belong to it.
// The Registry also indexes packages by name and answers route lookups for
// the HTTP host.
//
// Every type in this package is safe for concurrent use: deployments mutate
// the registry while requests are being matched against it.
package registry
