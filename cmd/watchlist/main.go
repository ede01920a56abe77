// Command watchlist manages a movie watchlist stored in DynamoDB or SQLite.
package main

import "github.com/mesh-intelligence/watchlist/internal/cli"

func main() {
	cli.Execute()
}
