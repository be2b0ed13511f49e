// Package evaporation implements the time-based pheromone decay used by the
// ARA routing table.
//
// Two interchangeable policies are provided:
//
//   - Linear: phi' = phi - factor * (elapsed / interval)
//   - Exponential: phi' = phi * factor ^ (elapsed / interval)
//
// Both clamp any result below the configured threshold to exactly 0 and
// return phi unchanged when no time has elapsed. A routing table deletes next
// hops whose pheromone reaches 0, so the threshold decides how long an unused
// path survives.
//
// Example:
//
//	policy, err := evaporation.New(evaporation.Config{
//	    Kind:      evaporation.KindExponential,
//	    Factor:    0.9,
//	    Threshold: 0.75,
//	    Interval:  2 * time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	phi = policy.Evaporate(phi, time.Since(lastAccess))
package evaporation
