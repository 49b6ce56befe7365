// Command immitate serves a fake REST API generated from model declarations.
package main

func main() {
	Execute()
}
