// Package site derives page and media descriptors from configuration and
// the source tree.
//
// Every descriptor carries fully resolved source and output paths, so later
// stages never recompute them. Path mapping functions are pure and never
// touch the filesystem; the Resolver and DiscoverMedia do.
package site
