package memrepo

import (
	"sort"

	"hyip-ledger/internal/models"
)

// The Put helpers load admin-owned configuration. They assign an ID when it is zero.

func (s *Store) PutUser(u models.User) models.User {
	s.write(func(st *state) {
		u.ID = assignID(st, u.ID)
		st.users[u.ID] = u
	})
	return u
}

func (s *Store) PutPlan(p models.Plan) models.Plan {
	s.write(func(st *state) {
		p.ID = assignID(st, p.ID)
		st.plans[p.ID] = p
	})
	return p
}

func (s *Store) PutWithdrawMethod(m models.WithdrawMethod) models.WithdrawMethod {
	s.write(func(st *state) {
		m.ID = assignID(st, m.ID)
		st.methods[m.ID] = m
	})
	return m
}

func (s *Store) PutDepositGateway(g models.DepositGateway) models.DepositGateway {
	s.write(func(st *state) {
		g.ID = assignID(st, g.ID)
		st.gateways[g.ID] = g
	})
	return g
}

func (s *Store) PutPool(p models.Pool) models.Pool {
	s.write(func(st *state) {
		p.ID = assignID(st, p.ID)
		st.pools[p.ID] = p
	})
	return p
}

func (s *Store) PutStakingPlan(p models.StakingPlan) models.StakingPlan {
	s.write(func(st *state) {
		p.ID = assignID(st, p.ID)
		st.stakingPlans[p.ID] = p
	})
	return p
}

func (s *Store) PutReferralRule(r models.ReferralRule) {
	s.write(func(st *state) {
		st.rules = append(append([]models.ReferralRule(nil), st.rules...), r)
	})
}

func (s *Store) PutRanking(r models.UserRanking) {
	s.write(func(st *state) {
		st.rankings = append(append([]models.UserRanking(nil), st.rankings...), r)
	})
}

func assignID(st *state, id int64) int64 {
	if id == 0 {
		return st.nextID()
	}
	if id > st.seq {
		st.seq = id
	}
	return id
}

func sortPoolInvestments(pis []models.PoolInvestment) {
	sort.Slice(pis, func(i, j int) bool { return pis[i].UserID < pis[j].UserID })
}
