// Command mathwiki crawls competition problems from the wiki, checkpoints
// them as JSON and loads them into a document store.
package main

func main() {
	Execute()
}
