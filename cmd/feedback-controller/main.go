// Command feedback-controller drives relay outputs from averaged sensor
// readings with a hysteresis dead band and a debounced audible alarm.
package main

import "github.com/sweeney/feedback-controller/cmd/feedback-controller/cmd"

func main() {
	cmd.Execute()
}
