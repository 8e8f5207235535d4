// The main package for the fontsniffer executable.
package main

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	Execute()
}
