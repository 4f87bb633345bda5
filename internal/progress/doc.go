// Package progress provides progress reporting for fetch and load stages.
//
// Stages report completion as a fraction in [0, 1]. A [Tracker] clamps the
// values it forwards and never lets them go backwards, so consumers always
// observe a monotonically non-decreasing sequence that ends at 1.0 on
// success.
//
// # Usage
//
//	t := progress.NewTracker(func(f float64) { fmt.Println(f) })
//	counter := progress.NewCounter(size, t.Report)
//	io.Copy(dst, io.TeeReader(body, counter))
//	t.Finish() // emits 1.0 and stops forwarding
//
// # Output Format
//
// The [Reporter] renders a fraction stream for terminals:
//
//	[bundlefetch] Downloading prefabs: 45.2% | 1.13 MiB / 2.50 MiB | Speed: 1.20 MiB/s
//	[bundlefetch] Downloading prefabs: 100.0% | Complete! (2s)
package progress
