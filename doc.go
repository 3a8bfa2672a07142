// Package orbit is the composition root of the orbit client.
//
// It wires the session manager (who am I acting as) and the timeline sync
// engine (what does the remote service hold) over one shared state, using
// the session backend and remote endpoints named in configuration.
//
// Outside production the client never talks to the real identity
// provider: login offers a fixed menu of simulated identities, and posts
// the content service attributes to the anonymous identity are shown as
// the selected one.
//
// Usage:
//
//	client, err := orbit.New(orbit.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	if _, err := client.Bootstrap(ctx); err != nil {
//		return err
//	}
//	dweets, err := client.Timeline.FetchTimeline(ctx)
package orbit
