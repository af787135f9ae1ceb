package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chorus-social/chorus/agent"
	"github.com/chorus-social/chorus/cascade"
	"github.com/chorus-social/chorus/communication"
	"github.com/chorus-social/chorus/core"
	"github.com/chorus-social/chorus/registry"
	"github.com/chorus-social/chorus/storage"
	"github.com/chorus-social/chorus/vfs"
)

var (
	store      storage.Store
	agentSvc   *agent.Service
	dispatcher *cascade.Dispatcher
)

// Init wires the handlers to the runtime. Call once at startup before
// serving.
func Init(s storage.Store, svc *agent.Service, d *cascade.Dispatcher) {
	store = s
	agentSvc = svc
	dispatcher = d
}

// viewer is an unauthenticated read-only gateway for public lookups.
func viewer() *vfs.Gateway {
	return vfs.New(store, "", "")
}

// CreateUser - Registers a human user
func CreateUser(c *gin.Context) {
	var req struct {
		Name   string `json:"name"`
		Handle string `json:"handle"`
		Bio    string `json:"bio"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" || req.Handle == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and handle are required"})
		return
	}

	user := &core.User{
		ID:     uuid.New().String(),
		Name:   req.Name,
		Handle: strings.ToLower(req.Handle),
		Bio:    req.Bio,
	}
	if err := store.CreateUser(user); err != nil {
		if errors.Is(err, storage.ErrHandleTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "handle already taken"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetUser - Fetch a user by handle
func GetUser(c *gin.Context) {
	user, err := store.GetUser(c.Param("handle"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// CreatePost - A human user posts; the cascade runs asynchronously
func CreatePost(c *gin.Context) {
	var req struct {
		Content      string `json:"content"`
		AuthorHandle string `json:"authorHandle"`
		ParentPostID string `json:"parentPostId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Content == "" || req.AuthorHandle == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content and authorHandle are required"})
		return
	}

	user, err := store.GetUser(req.AuthorHandle)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "author not found"})
		return
	}

	post := &core.Post{
		ID:           uuid.New().String(),
		Content:      req.Content,
		AuthorType:   core.AuthorUser,
		AuthorID:     user.ID,
		ParentPostID: req.ParentPostID,
	}
	if err := store.CreatePost(post); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	communication.BroadcastEvent(communication.EventPostCreated, post)

	// Fire the cascade without holding up the response.
	go func(postID string) {
		outcome, err := dispatcher.ProcessEvent(context.Background(), postID)
		if err != nil {
			log.Printf("Cascade failed for post %s: %v", postID, err)
			return
		}
		communication.BroadcastEvent(communication.EventCascadeDone, outcome)
	}(post.ID)

	c.JSON(http.StatusOK, post)
}

// ProcessPost - Run the cascade for one post and wait for the outcome
func ProcessPost(c *gin.Context) {
	outcome, err := dispatcher.ProcessEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "post not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	communication.BroadcastEvent(communication.EventCascadeDone, outcome)
	c.JSON(http.StatusOK, outcome)
}

// GetPost - Fetch a post with its author
func GetPost(c *gin.Context) {
	respondResult(c, viewer().Read("/posts/"+c.Param("id")))
}

// GetReplies - Direct replies to a post
func GetReplies(c *gin.Context) {
	respondResult(c, viewer().Read("/posts/"+c.Param("id")+"/replies"))
}

// GetThread - Full nested thread for a post
func GetThread(c *gin.Context) {
	respondResult(c, viewer().Read("/posts/"+c.Param("id")+"/thread"))
}

// GetFeed - Root posts, filterable via query parameters
func GetFeed(c *gin.Context) {
	path := "/posts"
	if c.Request.URL.RawQuery != "" {
		path += "?" + c.Request.URL.RawQuery
	}
	respondResult(c, viewer().Read(path))
}

// SearchPosts - Text search over posts
func SearchPosts(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q parameter is required"})
		return
	}
	var filters *vfs.PostFilters
	if v := c.Query("minScore"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filters = &vfs.PostFilters{MinScore: &n}
		}
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	respondResult(c, viewer().Search(query, filters, limit))
}

// ListPersonas - The persona directory
func ListPersonas(c *gin.Context) {
	respondResult(c, viewer().Read("/personas"))
}

// GetPersona - One persona's profile
func GetPersona(c *gin.Context) {
	respondResult(c, viewer().Read("/personas/"+c.Param("handle")))
}

// CreatePersona - Manually add a persona to the cast
func CreatePersona(c *gin.Context) {
	var persona core.Persona
	if err := c.ShouldBindJSON(&persona); err != nil || persona.Name == "" || persona.Handle == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and handle are required"})
		return
	}
	persona.ID = uuid.New().String()
	persona.Handle = strings.ToLower(persona.Handle)

	if persona.IsReviewer {
		if _, err := store.GetReviewer(); err == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "a reviewer already exists"})
			return
		}
	}

	if err := store.CreatePersona(&persona); err != nil {
		if errors.Is(err, storage.ErrHandleTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "handle already taken"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, persona)
}

// GetPersonaFeed - The feed as one persona sees it, through its filters
func GetPersonaFeed(c *gin.Context) {
	persona, err := store.GetPersona(c.Param("handle"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "persona not found"})
		return
	}

	q := storage.FeedQuery{
		MinScore:   persona.FeedFilters.MinScore,
		Categories: persona.FeedFilters.Categories,
		RootOnly:   true,
		Limit:      50,
	}
	posts, err := store.GetFeed(q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if len(persona.FeedFilters.ExcludeCategories) > 0 {
		excluded := make(map[string]bool)
		for _, cat := range persona.FeedFilters.ExcludeCategories {
			excluded[cat] = true
		}
		filtered := posts[:0]
		for _, p := range posts {
			keep := true
			for _, cat := range p.Categories {
				if excluded[cat] {
					keep = false
					break
				}
			}
			if keep {
				filtered = append(filtered, p)
			}
		}
		posts = filtered
	}

	c.JSON(http.StatusOK, gin.H{"handle": persona.Handle, "posts": posts})
}

// WakePersona - Wake one persona directly
func WakePersona(c *gin.Context) {
	var req core.WakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = core.WakeRequest{}
	}
	if req.TriggerType == "" {
		req.TriggerType = core.TriggerDirect
	}

	resp, err := agentSvc.Wake(c.Request.Context(), c.Param("handle"), &req)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "persona not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	communication.BroadcastEvent(communication.EventPersonaWoken, resp)
	c.JSON(http.StatusOK, resp)
}

// GetActivity - Recent activity log entries
func GetActivity(c *gin.Context) {
	path := "/activity"
	if v := c.Query("limit"); v != "" {
		path += "?limit=" + v
	}
	respondResult(c, viewer().Read(path))
}

// GetStatus - Runtime status: in-flight wakes per persona
func GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"wakesInFlight": registry.InFlightCount(),
		"personas":      registry.Snapshot(),
	})
}

func respondResult(c *gin.Context, result vfs.Result) {
	if !result.Success {
		status := http.StatusNotFound
		if strings.HasPrefix(result.Error, "unknown path") {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": result.Error})
		return
	}
	c.JSON(http.StatusOK, result.Data)
}
