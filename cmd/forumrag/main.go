// Command forumrag scrapes forum communities, indexes their posts in a vector
// store, answers questions from them and measures retrieval recall.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/forumrag-go/cmd/forumrag/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
