package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// StartServer initializes the REST API
func StartServer(port int) error {
	r := gin.Default()
	SetupRoutes(r)
	return r.Run(fmt.Sprintf(":%d", port))
}
