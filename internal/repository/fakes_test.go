package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/louisbranch/bookclub/internal/domain"
	"github.com/louisbranch/bookclub/internal/remote"
)

type fakeServerClient struct {
	mu         sync.Mutex
	servers    map[string]domain.Server
	err        error
	fetchCalls int
}

func (c *fakeServerClient) FetchServer(_ context.Context, id string) (domain.Server, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchCalls++
	if c.err != nil {
		return domain.Server{}, c.err
	}
	server, ok := c.servers[id]
	if !ok {
		return domain.Server{}, &remote.Error{Kind: remote.KindNotFound, Op: "fetch server"}
	}
	return server, nil
}

func (c *fakeServerClient) FetchServers(context.Context) ([]domain.Server, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchCalls++
	if c.err != nil {
		return nil, c.err
	}
	servers := make([]domain.Server, 0, len(c.servers))
	for _, server := range c.servers {
		servers = append(servers, server)
	}
	sort.Slice(servers, func(i, j int) bool { return servers[i].ID < servers[j].ID })
	return servers, nil
}

type fakeClubClient struct {
	mu          sync.Mutex
	clubs       map[string]domain.Club
	memberships map[string][]domain.Membership
	err         error
	fetchCalls  int
	memberCalls int
	created     []domain.Club
}

func (c *fakeClubClient) FetchClub(_ context.Context, id string) (domain.Club, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchCalls++
	if c.err != nil {
		return domain.Club{}, c.err
	}
	club, ok := c.clubs[id]
	if !ok {
		return domain.Club{}, &remote.Error{Kind: remote.KindNotFound, Op: "fetch club"}
	}
	return club, nil
}

func (c *fakeClubClient) FetchClubs(context.Context) ([]domain.Club, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchCalls++
	if c.err != nil {
		return nil, c.err
	}
	clubs := make([]domain.Club, 0, len(c.clubs))
	for _, club := range c.clubs {
		clubs = append(clubs, club)
	}
	sort.Slice(clubs, func(i, j int) bool { return clubs[i].ID < clubs[j].ID })
	return clubs, nil
}

func (c *fakeClubClient) FetchClubsForServer(_ context.Context, serverID string) ([]domain.Club, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchCalls++
	if c.err != nil {
		return nil, c.err
	}
	var clubs []domain.Club
	for _, club := range c.clubs {
		if club.ServerID != nil && *club.ServerID == serverID {
			clubs = append(clubs, club)
		}
	}
	sort.Slice(clubs, func(i, j int) bool { return clubs[i].ID < clubs[j].ID })
	return clubs, nil
}

func (c *fakeClubClient) FetchClubMembers(_ context.Context, clubID string) ([]domain.Membership, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memberCalls++
	if c.err != nil {
		return nil, c.err
	}
	return c.memberships[clubID], nil
}

func (c *fakeClubClient) CreateClub(_ context.Context, club domain.Club) (domain.Club, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return domain.Club{}, c.err
	}
	if c.clubs == nil {
		c.clubs = map[string]domain.Club{}
	}
	c.clubs[club.ID] = club
	c.created = append(c.created, club)
	return club, nil
}

func (c *fakeClubClient) UpdateClub(_ context.Context, club domain.Club) (domain.Club, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return domain.Club{}, c.err
	}
	c.clubs[club.ID] = club
	return club, nil
}

func (c *fakeClubClient) DeleteClub(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	delete(c.clubs, id)
	return nil
}

func (c *fakeClubClient) AddMember(_ context.Context, clubID, memberID string, role domain.ClubRole) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	if c.memberships == nil {
		c.memberships = map[string][]domain.Membership{}
	}
	c.memberships[clubID] = append(c.memberships[clubID], domain.Membership{
		Member: domain.Member{ID: memberID, Name: memberID, Handle: memberID},
		Role:   role,
	})
	return nil
}

func (c *fakeClubClient) UpdateMemberRole(_ context.Context, clubID, memberID string, role domain.ClubRole) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	for i, membership := range c.memberships[clubID] {
		if membership.Member.ID == memberID {
			c.memberships[clubID][i].Role = role
		}
	}
	return nil
}

func (c *fakeClubClient) RemoveMember(_ context.Context, clubID, memberID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	kept := c.memberships[clubID][:0]
	for _, membership := range c.memberships[clubID] {
		if membership.Member.ID != memberID {
			kept = append(kept, membership)
		}
	}
	c.memberships[clubID] = kept
	return nil
}

type fakeSessionClient struct {
	mu         sync.Mutex
	sessions   map[string]domain.Session
	err        error
	fetchCalls int
}

func (c *fakeSessionClient) FetchSession(_ context.Context, id string) (domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchCalls++
	if c.err != nil {
		return domain.Session{}, c.err
	}
	session, ok := c.sessions[id]
	if !ok {
		return domain.Session{}, &remote.Error{Kind: remote.KindNotFound, Op: "fetch session"}
	}
	return session, nil
}

func (c *fakeSessionClient) FetchSessionsForClub(_ context.Context, clubID string) ([]domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchCalls++
	if c.err != nil {
		return nil, c.err
	}
	var sessions []domain.Session
	for _, session := range c.sessions {
		if session.ClubID == clubID {
			sessions = append(sessions, session)
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	return sessions, nil
}

func (c *fakeSessionClient) CreateSession(_ context.Context, session domain.Session) (domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return domain.Session{}, c.err
	}
	if c.sessions == nil {
		c.sessions = map[string]domain.Session{}
	}
	c.sessions[session.ID] = session
	return session, nil
}

func (c *fakeSessionClient) UpdateSession(_ context.Context, session domain.Session) (domain.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return domain.Session{}, c.err
	}
	c.sessions[session.ID] = session
	return session, nil
}

func (c *fakeSessionClient) DeleteSession(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	delete(c.sessions, id)
	return nil
}
