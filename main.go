// @title Daily Step Tracker API
// @version 1.0
// @description 每日步数记录服务。

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:2022
// @BasePath /api

package main

import (
	"fmt"
	"os"

	"github.com/pffigueiredo/daily-step-tracker/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
