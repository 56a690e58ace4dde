// gaze-stream captures camera frames, detects face landmarks and writes one
// length-prefixed gaze message per detected face to stdout.
//
// Usage:
//
//	gaze-stream [--config gaze.yaml] [--device 0] [--max-faces 1] | consumer
//	gaze-stream config
package main

func main() {
	Execute()
}
