// Package fred provides the configuration and scratch-space plumbing of a
// content-addressed retrieval client.
//
// A [Client] owns what every fetch in a process shares: the randomness
// source, the temp-file namespace that fetched data is buffered in, and
// the default fetch settings. Each top-level request gets its own root
// [fetch.Config]; the fetch engine derives masked children from it as
// it recurses into splitfile blocks and container manifests.
//
// # Quick Start
//
//	c, err := fred.NewClient(
//	    fred.WithTempDir("/var/lib/fred/tmp"),
//	    fred.WithWipeTemp(true),
//	)
//	if err != nil {
//	    return err
//	}
//	cfg, err := c.NewFetchConfig()
//	if err != nil {
//	    return err
//	}
//	block, err := cfg.Derive(fetch.MaskSplitfileDefaultBlock)
//
// # Temp Files
//
// Buffered data lives in files named by a [tempfile.Generator]: the
// configured prefix plus 16 random hex characters. With [WithWipeTemp],
// files carrying the prefix that a previous process left behind are
// deleted when the client starts.
//
// # Settings
//
// Fetch limits default to [fetch.DefaultSettings] and can be loaded
// from YAML with [WithSettingsFile]:
//
//	max-recursion-level: 5
//	max-splitfile-threads: 10
//	allow-splitfiles: true
package fred
