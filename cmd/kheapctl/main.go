// Command kheapctl drives the kheap allocator with synthetic workloads and
// reports on the resulting heap.
package main

func main() {
	execute()
}
