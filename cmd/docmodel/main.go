// Command docmodel serves document classes declared in YAML over HTTP and
// inspects or validates them from the command line.
package main

func main() {
	Execute()
}
