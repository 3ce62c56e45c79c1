package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gorillaWS "github.com/gorilla/websocket"
)

var upgrader = gorillaWS.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 在生产环境中应该检查 Origin
		return true
	},
}

// WebSocketHandler WebSocket 处理器
// 客户端通过 user_id 查询参数标识自己,订阅本人的审批事件推送
func WebSocketHandler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 从 query 参数获取用户 ID
		userID := c.Query("user_id")
		if userID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing user_id"})
			return
		}

		// 2. 升级连接
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upgrade connection"})
			return
		}

		// 3. 创建客户端
		client := NewClient(
			uuid.New().String(),
			userID,
			hub,
			conn,
		)

		// 4. 注册客户端
		hub.Register <- client

		// 5. 启动 readPump 和 writePump
		go client.ReadPump()
		go client.WritePump()
	}
}
