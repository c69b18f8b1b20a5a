package util

// SequenceRatio is the Ratcliff/Obershelp similarity of a and b: twice the number of
// matched runes over the total rune count. The longest common block is taken first (earliest
// in a, then earliest in b on ties) and the sides are matched recursively.
func SequenceRatio(a, b string) float64 {
	return sequenceRatio([]rune(a), []rune(b))
}

func sequenceRatio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchedRunes(a, b)) / float64(total)
}

type matchRange struct {
	alo, ahi, blo, bhi int
}

func matchedRunes(a, b []rune) int {
	matched := 0
	queue := []matchRange{{0, len(a), 0, len(b)}}
	for len(queue) > 0 {
		r := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		i, j, k := longestMatch(a, b, r)
		if k == 0 {
			continue
		}
		matched += k
		if r.alo < i && r.blo < j {
			queue = append(queue, matchRange{r.alo, i, r.blo, j})
		}
		if i+k < r.ahi && j+k < r.bhi {
			queue = append(queue, matchRange{i + k, r.ahi, j + k, r.bhi})
		}
	}
	return matched
}

// longestMatch returns the longest common block inside r; ties go to the block that
// ends first in a, then first in b.
func longestMatch(a, b []rune, r matchRange) (int, int, int) {
	besti, bestj, bestk := r.alo, r.blo, 0
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := r.alo; i < r.ahi; i++ {
		for j := r.blo; j < r.bhi; j++ {
			if a[i] != b[j] {
				cur[j+1] = 0
				continue
			}
			k := prev[j] + 1
			cur[j+1] = k
			if k > bestk {
				besti, bestj, bestk = i-k+1, j-k+1, k
			}
		}
		prev, cur = cur, prev
		for j := range cur {
			cur[j] = 0
		}
	}
	return besti, bestj, bestk
}
